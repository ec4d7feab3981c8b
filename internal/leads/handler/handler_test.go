package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"funnel_backend/internal/leads/domain"
	"funnel_backend/internal/leads/lifecycle"
	"funnel_backend/internal/leads/memory"
	"funnel_backend/internal/leads/service"
	"funnel_backend/internal/leads/transport"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type testLifecycleConfig struct{}

func (testLifecycleConfig) GetLifecycleOperationTimeout() time.Duration { return time.Second }

func newTestRouter(t *testing.T) (*gin.Engine, *memory.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	engine := lifecycle.New(store, nil, testLifecycleConfig{}, logger.New("test"))
	h := New(service.New(engine, store), validator.New())

	router := gin.New()
	h.RegisterRoutes(router.Group("/leads"))
	return router, store
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAdvanceMapsErrorsToStatusCodes(t *testing.T) {
	router, store := newTestRouter(t)
	lead := store.Insert(domain.Lead{Email: "ada@example.com", FirstName: "Ada", State: domain.StateAppliedPhysical, AutomationEnabled: true})

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{name: "unknown state", path: "/leads/" + lead.ID.String() + "/advance", body: transport.AdvanceStateRequest{State: "PAID"}, status: http.StatusBadRequest},
		{name: "backward move", path: "/leads/" + lead.ID.String() + "/advance", body: transport.AdvanceStateRequest{State: "NURTURING"}, status: http.StatusConflict},
		{name: "missing lead", path: "/leads/" + uuid.NewString() + "/advance", body: transport.AdvanceStateRequest{State: "ACCEPTED"}, status: http.StatusNotFound},
		{name: "malformed id", path: "/leads/not-a-uuid/advance", body: transport.AdvanceStateRequest{State: "ACCEPTED"}, status: http.StatusBadRequest},
		{name: "missing state", path: "/leads/" + lead.ID.String() + "/advance", body: map[string]string{"reason": "x"}, status: http.StatusBadRequest},
		{name: "forward move", path: "/leads/" + lead.ID.String() + "/advance", body: transport.AdvanceStateRequest{State: "accepted", Reason: "Application Approved by Admin"}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}

	current, _ := store.GetLead(context.Background(), lead.ID)
	if current.State != domain.StateAccepted {
		t.Fatalf("expected ACCEPTED after the forward move, got %s", current.State)
	}
}

func TestGetByIDIncludesHistory(t *testing.T) {
	router, store := newTestRouter(t)
	lead := store.Insert(domain.Lead{Email: "ada@example.com", FirstName: "Ada", AutomationEnabled: true})

	rec := doRequest(router, http.MethodPost, "/leads/"+lead.ID.String()+"/advance", transport.AdvanceStateRequest{State: "ASSESSMENT_COMPLETED"})
	if rec.Code != http.StatusOK {
		t.Fatalf("advance failed: %d %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodGet, "/leads/"+lead.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp transport.LeadDetailResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State != "ASSESSMENT_COMPLETED" || resp.Phase != string(domain.PhaseQualify) {
		t.Fatalf("unexpected lead %+v", resp.LeadResponse)
	}
	if len(resp.History) != 1 || resp.History[0].Reason != "Transition to ASSESSMENT_COMPLETED" {
		t.Fatalf("unexpected history %+v", resp.History)
	}
}

func TestPauseAndResume(t *testing.T) {
	router, store := newTestRouter(t)
	lead := store.Insert(domain.Lead{Email: "ada@example.com", FirstName: "Ada", AutomationEnabled: true})

	rec := doRequest(router, http.MethodPost, "/leads/"+lead.ID.String()+"/pause", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause failed: %d %s", rec.Code, rec.Body.String())
	}
	var paused transport.LeadResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &paused)
	if paused.AutomationEnabled || !paused.HumanRequired {
		t.Fatalf("unexpected flags after pause: %+v", paused)
	}

	rec = doRequest(router, http.MethodPost, "/leads/"+lead.ID.String()+"/resume", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume failed: %d %s", rec.Code, rec.Body.String())
	}
	var resumed transport.LeadResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resumed)
	if !resumed.AutomationEnabled || resumed.HumanRequired {
		t.Fatalf("unexpected flags after resume: %+v", resumed)
	}
}

func TestSummaryCountsEveryStateAndPhase(t *testing.T) {
	router, store := newTestRouter(t)
	store.Insert(domain.Lead{Email: "a@example.com", State: domain.StateNew})
	store.Insert(domain.Lead{Email: "b@example.com", State: domain.StateNurturing})
	store.Insert(domain.Lead{Email: "c@example.com", State: domain.StateOnlineClient})
	store.Insert(domain.Lead{Email: "d@example.com", State: domain.StateClient})

	rec := doRequest(router, http.MethodGet, "/leads/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp transport.FunnelSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 4 {
		t.Fatalf("expected total 4, got %d", resp.Total)
	}
	if len(resp.ByState) != len(domain.States()) {
		t.Fatalf("expected %d state rows, got %d", len(domain.States()), len(resp.ByState))
	}

	byPhase := make(map[string]int)
	for _, row := range resp.ByPhase {
		byPhase[row.Phase] = row.Count
	}
	if byPhase[string(domain.PhaseQualify)] != 1 || byPhase[string(domain.PhaseNurture)] != 2 || byPhase[string(domain.PhaseClose)] != 1 {
		t.Fatalf("unexpected phase counts %v", byPhase)
	}
}

func TestListFiltersByState(t *testing.T) {
	router, store := newTestRouter(t)
	store.Insert(domain.Lead{Email: "a@example.com", State: domain.StateNew})
	store.Insert(domain.Lead{Email: "b@example.com", State: domain.StateNurturing})

	rec := doRequest(router, http.MethodGet, "/leads?state=nurturing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp transport.LeadListResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Items) != 1 || resp.Items[0].Email != "b@example.com" {
		t.Fatalf("unexpected list %+v", resp)
	}

	rec = doRequest(router, http.MethodGet, "/leads?state=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state filter, got %d", rec.Code)
	}
}

func TestDeleteLead(t *testing.T) {
	router, store := newTestRouter(t)
	lead := store.Insert(domain.Lead{Email: "a@example.com"})

	if rec := doRequest(router, http.MethodDelete, "/leads/"+lead.ID.String(), nil); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doRequest(router, http.MethodDelete, "/leads/"+lead.ID.String(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", rec.Code)
	}
}
