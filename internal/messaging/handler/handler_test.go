package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/internal/messaging/transport"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeTemplates struct {
	templates []repository.Template
}

func (f fakeTemplates) List(context.Context) ([]repository.Template, error) {
	return f.templates, nil
}

func (f fakeTemplates) ListActiveByTriggerState(context.Context, string) ([]repository.Template, error) {
	return nil, nil
}

func (f fakeTemplates) GetByName(_ context.Context, name string) (repository.Template, error) {
	for _, tpl := range f.templates {
		if tpl.Name == name {
			return tpl, nil
		}
	}
	return repository.Template{}, repository.ErrNotFound
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	store := fakeTemplates{templates: []repository.Template{{
		ID:       uuid.New(),
		Name:     "Acceptance Message",
		Subject:  "Congratulations! You've been accepted to {program_name}",
		Content:  "Hi {first_name}, pay at {payment_link}",
		IsActive: true,
	}}}

	h := New(store, resolver.New(store), "LPBA", validator.New())
	router := gin.New()
	h.RegisterRoutes(router.Group("/templates"))
	return router
}

func postPreview(router *gin.Engine, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/templates/preview", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPreviewRendersLeniently(t *testing.T) {
	router := newTestRouter()

	rec := postPreview(router, transport.PreviewTemplateRequest{
		Name:      "Acceptance Message",
		Variables: map[string]string{"first_name": "Ada"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp transport.PreviewTemplateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Subject != "Congratulations! You've been accepted to LPBA" {
		t.Fatalf("unexpected subject %q", resp.Subject)
	}
	if resp.Body != "Hi Ada, pay at {payment_link}" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.HTML == "" {
		t.Fatal("expected html preview")
	}
}

func TestPreviewUnknownTemplate(t *testing.T) {
	router := newTestRouter()

	rec := postPreview(router, transport.PreviewTemplateRequest{Name: "Missing"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPreviewRequiresName(t *testing.T) {
	router := newTestRouter()

	rec := postPreview(router, map[string]any{"variables": map[string]string{"a": "b"}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListTemplates(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/templates", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp transport.TemplateListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Name != "Acceptance Message" {
		t.Fatalf("unexpected list %+v", resp)
	}
}
