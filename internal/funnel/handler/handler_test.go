package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funnel_backend/internal/funnel/repository"
	"funnel_backend/internal/funnel/service"
	"funnel_backend/internal/funnel/transport"
	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/lifecycle"
	"funnel_backend/internal/leads/memory"
	msgrepo "funnel_backend/internal/messaging/repository"
	"funnel_backend/internal/messaging/resolver"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testConfig struct{}

func (testConfig) GetAssessmentHighPotentialThreshold() int    { return 10 }
func (testConfig) GetApplicationStrongThreshold() int          { return 8 }
func (testConfig) GetApplicationModerateThreshold() int        { return 4 }
func (testConfig) GetApplicationCommitmentKeywords() []string  { return []string{"ready"} }
func (testConfig) GetProgramName() string                      { return "LPBA" }
func (testConfig) GetPaymentBaseURL() string                   { return "https://pay.example.com" }
func (testConfig) GetPaymentLinkTTL() time.Duration            { return time.Hour }
func (testConfig) GetLifecycleOperationTimeout() time.Duration { return time.Second }

// stubStore stores assessments and knows no applications.
type stubStore struct{}

func (stubStore) InsertAssessment(_ context.Context, p repository.InsertAssessmentParams) (repository.Assessment, error) {
	return repository.Assessment{ID: uuid.New(), LeadID: p.LeadID, Score: p.Score}, nil
}

func (stubStore) InsertApplication(context.Context, repository.InsertApplicationParams) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (stubStore) GetApplication(context.Context, uuid.UUID) (repository.Application, error) {
	return repository.Application{}, repository.ErrNotFound
}

func (stubStore) ListApplications(context.Context, repository.ListApplicationsParams) ([]repository.Application, int, error) {
	return nil, 0, nil
}

func (stubStore) Approve(context.Context, uuid.UUID, string, time.Time) (repository.Application, error) {
	return repository.Application{}, repository.ErrNotFound
}

func (stubStore) Reject(context.Context, uuid.UUID) (repository.Application, error) {
	return repository.Application{}, repository.ErrNotPending
}

type noTemplates struct{}

func (noTemplates) ResolveForState(context.Context, domain.State) (msgrepo.Template, error) {
	return msgrepo.Template{}, resolver.ErrTemplateNotFound
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test")
	leads := memory.New()
	svc := service.New(service.Deps{
		Store:     stubStore{},
		Leads:     leads,
		Lifecycle: lifecycle.New(leads, nil, testConfig{}, log),
		Templates: noTemplates{},
		Config:    testConfig{},
		Log:       log,
	})
	h := New(svc, validator.New())

	router := gin.New()
	h.RegisterPublicRoutes(router.Group(""))
	h.RegisterAdminRoutes(router.Group("/admin/applications"))
	return router
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAssessment(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "valid", body: transport.SubmitAssessmentRequest{Email: "ada@example.com", FirstName: "Ada", Answers: map[string]int{"q1": 7, "q2": 5}}, status: http.StatusCreated},
		{name: "missing email", body: transport.SubmitAssessmentRequest{FirstName: "Ada", Answers: map[string]int{"q1": 1}}, status: http.StatusBadRequest},
		{name: "invalid email", body: transport.SubmitAssessmentRequest{Email: "nope", FirstName: "Ada", Answers: map[string]int{"q1": 1}}, status: http.StatusBadRequest},
		{name: "answer out of range", body: transport.SubmitAssessmentRequest{Email: "ada@example.com", FirstName: "Ada", Answers: map[string]int{"q1": 11}}, status: http.StatusBadRequest},
		{name: "no answers", body: transport.SubmitAssessmentRequest{Email: "ada@example.com", FirstName: "Ada"}, status: http.StatusBadRequest},
		{name: "malformed json", body: "not an object", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/assessments", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSubmitAssessmentResponse(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/assessments", transport.SubmitAssessmentRequest{
		Email: "ada@example.com", FirstName: "Ada", Answers: map[string]int{"q1": 7, "q2": 5},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp transport.AssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Score != 12 || resp.Result != "High Potential" || resp.LeadID == uuid.Nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSubmitApplicationRequiresPhone(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(router, http.MethodPost, "/applications", transport.SubmitApplicationRequest{
		Email: "ada@example.com", FirstName: "Ada", Commitment: "ready",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/applications", transport.SubmitApplicationRequest{
		Email: "ada@example.com", FirstName: "Ada", Phone: "08031234567", Commitment: "ready",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReviewErrors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "accept unknown", path: "/admin/applications/" + uuid.NewString() + "/accept", status: http.StatusNotFound},
		{name: "reject reviewed", path: "/admin/applications/" + uuid.NewString() + "/reject", status: http.StatusConflict},
		{name: "malformed id", path: "/admin/applications/abc/accept", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, tt.path, nil)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestListApplicationsRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(t)

	if rec := doRequest(router, http.MethodGet, "/admin/applications?status=LOST", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if rec := doRequest(router, http.MethodGet, "/admin/applications?status=approved", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
