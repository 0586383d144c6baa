package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/sahayata/saathi/backend/internal/middleware"
	escalationmodel "github.com/sahayata/saathi/backend/internal/model/escalation"
	escalationservice "github.com/sahayata/saathi/backend/internal/service/escalation"
	"github.com/sahayata/saathi/backend/internal/store"
)

func setupRouter(t *testing.T) (*chi.Mux, *store.MemoryStore, escalationmodel.Record) {
	t.Helper()
	data := store.NewMemoryStore()
	directory := escalationservice.NewMemoryDirectory(map[string]string{"student-1": "inst-1"})
	handler := New(data, directory)

	record, err := data.CreateEscalation(context.Background(), escalationmodel.Record{
		InstitutionID: "inst-1",
		UserID:        "student-1",
		Severity:      escalationmodel.SeverityHigh,
		RiskScore:     0.85,
		RiskLevel:     "high",
		Reason:        "risk threshold exceeded",
		Status:        escalationmodel.StatusPending,
	})
	if err != nil {
		t.Fatalf("create escalation: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.WithIdentity)
	handler.RegisterRoutes(r)
	return r, data, record
}

func staffRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("X-User-ID", "staff-1")
	req.Header.Set("X-Role", middleware.RoleStaff)
	req.Header.Set("X-Institution-ID", "inst-1")
	return req
}

func TestListNotificationsForOwnInstitution(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, staffRequest(http.MethodGet, "/notifications/institution"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Notifications []escalationmodel.Record `json:"notifications"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(body.Notifications))
	}
}

func TestListNotificationsRequiresStaffRole(t *testing.T) {
	r, _, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/notifications/institution", nil)
	req.Header.Set("X-User-ID", "student-1")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestListNotificationsRejectsForeignInstitution(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, staffRequest(http.MethodGet, "/notifications/institution?institution_id=inst-2"))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.Code)
	}
}

func TestMarkReadAcknowledges(t *testing.T) {
	r, data, record := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, staffRequest(http.MethodPost, "/notifications/"+record.ID+"/read"))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	updated, err := data.GetEscalation(context.Background(), record.ID)
	if err != nil {
		t.Fatalf("get escalation: %v", err)
	}
	if updated.Status != escalationmodel.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", updated.Status)
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	r, _, _ := setupRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, staffRequest(http.MethodPost, "/notifications/nope/read"))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
