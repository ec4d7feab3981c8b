package handler

import (
	"context"
	"errors"
	"net/http"

	"funnel_backend/internal/email"
	"funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/internal/messaging/transport"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/httpkit"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "invalid request"

// TemplateLister lists every template for the admin overview.
type TemplateLister interface {
	List(ctx context.Context) ([]repository.Template, error)
}

type Handler struct {
	templates   TemplateLister
	resolver    *resolver.Resolver
	programName string
	val         *validator.Validator
}

func New(templates TemplateLister, res *resolver.Resolver, programName string, val *validator.Validator) *Handler {
	return &Handler{templates: templates, resolver: res, programName: programName, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("/preview", h.Preview)
}

func (h *Handler) List(c *gin.Context) {
	templates, err := h.templates.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	items := make([]transport.TemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		items = append(items, transport.TemplateResponse{
			ID:           tpl.ID,
			Name:         tpl.Name,
			TriggerState: tpl.TriggerState,
			Subject:      tpl.Subject,
			Content:      tpl.Content,
			IsActive:     tpl.IsActive,
			UpdatedAt:    tpl.UpdatedAt,
		})
	}
	httpkit.OK(c, transport.TemplateListResponse{Items: items})
}

// Preview renders a template by name. Placeholders missing from the request
// variables stay in the output so authors can spot them.
func (h *Handler) Preview(c *gin.Context) {
	var req transport.PreviewTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); httpkit.HandleError(c, err) {
		return
	}

	tpl, err := h.resolver.GetByName(c.Request.Context(), req.Name)
	if errors.Is(err, resolver.ErrTemplateNotFound) {
		err = apperr.Wrap(apperr.KindNotFound, "template not found", err)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	variables := map[string]string{"program_name": h.programName}
	for key, value := range req.Variables {
		variables[key] = value
	}
	msg := resolver.RenderTemplate(tpl, variables)

	html, err := email.RenderMessage(msg.Subject, msg.Body, email.Layout{ProgramName: h.programName})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.PreviewTemplateResponse{Subject: msg.Subject, Body: msg.Body, HTML: html})
}
