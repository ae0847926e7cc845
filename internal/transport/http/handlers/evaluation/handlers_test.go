package evaluationhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"perfeval/internal/domain/audit"
	"perfeval/internal/domain/auth"
	"perfeval/internal/domain/evaluation"
	"perfeval/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func strPtr(v string) *string { return &v }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	router, _ := newTestRouterWithAudit(t)
	return router
}

func newTestRouterWithAudit(t *testing.T) (http.Handler, *audit.Memory) {
	t.Helper()
	store := evaluation.NewMemoryStore()
	store.AddPeriod(evaluation.Period{
		ID:                    "p1",
		Name:                  "2025 H1",
		MaxSelfEvaluationRate: 120,
		GradeBands: []evaluation.GradeBand{
			{Grade: "S", MinScore: 85, MaxScore: 100},
			{Grade: "A", MinScore: 80, MaxScore: 84},
			{Grade: "B", MinScore: 0, MaxScore: 79},
		},
	})
	store.AddMember("p1", "e1")
	store.AddMember("p1", "e2")
	for _, a := range []evaluation.Assignment{
		{ID: "a1", EmployeeID: "e1", PeriodID: "p1", WorkItemID: "w1", Weight: 30},
		{ID: "a2", EmployeeID: "e1", PeriodID: "p1", WorkItemID: "w2", Weight: 40},
		{ID: "a3", EmployeeID: "e1", PeriodID: "p1", WorkItemID: "w3", Weight: 30},
	} {
		store.AddAssignment(a)
	}
	store.AddBinding(evaluation.EvaluatorBinding{PeriodID: "p1", EmployeeID: "e1", EvaluatorID: "m1", Tier: evaluation.TierPrimary})
	store.AddBinding(evaluation.EvaluatorBinding{PeriodID: "p1", EmployeeID: "e1", EvaluatorID: "s1", Tier: evaluation.TierSecondary, WorkItemID: strPtr("w2")})

	auditLog := audit.NewMemory(nil)
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Auth(testSecret))
	router.Route("/api/v1", func(r chi.Router) {
		NewHandler(evaluation.NewService(store, 2, nil), auditLog).RegisterRoutes(r)
	})
	return router, auditLog
}

func tokenFor(t *testing.T, employeeID, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Claims{EmployeeID: employeeID, Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

func call(t *testing.T, router http.Handler, token, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rec, env
}

func saveRecord(t *testing.T, router http.Handler, token, stage, workItemID string, raw *int) evaluation.EvaluationRecord {
	t.Helper()
	rec, env := call(t, router, token, http.MethodPut, "/api/v1/evaluation/periods/p1/employees/e1/records", map[string]any{
		"workItemId": workItemID,
		"stage":      stage,
		"rawScore":   raw,
		"content":    "notes",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("save %s %s: expected 200, got %d: %s", stage, workItemID, rec.Code, rec.Body.String())
	}
	var out evaluation.EvaluationRecord
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return out
}

func intPtr(v int) *int { return &v }

func TestDashboardRequiresAuthentication(t *testing.T) {
	router := newTestRouter(t)
	rec, env := call(t, router, "", http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/dashboard", nil)
	if rec.Code != http.StatusUnauthorized || env.Error == nil || env.Error.Code != "unauthorized" {
		t.Fatalf("expected 401, got %d %+v", rec.Code, env.Error)
	}
}

func TestSelfEvaluationFlow(t *testing.T) {
	router := newTestRouter(t)
	employee := tokenFor(t, "e1", auth.RoleEmployee)

	for _, item := range []string{"w1", "w2", "w3"} {
		saveRecord(t, router, employee, "SELF", item, intPtr(120))
	}

	rec, env := call(t, router, employee, http.MethodPost, "/api/v1/evaluation/periods/p1/employees/e1/bulk-submit", map[string]any{
		"stage":      "SELF",
		"selfTarget": "manager",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result evaluation.BulkSubmitResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SubmittedCount != 3 || result.FailedCount != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	rec, env = call(t, router, tokenFor(t, "m1", auth.RoleEmployee), http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/dashboard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", rec.Code)
	}
	var dashboard evaluation.Dashboard
	if err := json.Unmarshal(env.Data, &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.Self.Status != evaluation.StatusComplete || !dashboard.Self.IsSubmittedToManager {
		t.Fatalf("unexpected self summary %+v", dashboard.Self)
	}
	if dashboard.Self.TotalScore == nil || *dashboard.Self.TotalScore != 100 || dashboard.Self.Grade == nil || *dashboard.Self.Grade != "S" {
		t.Fatalf("expected score 100 grade S, got %+v", dashboard.Self.StageSummary)
	}
}

func TestPeerCannotViewDashboard(t *testing.T) {
	router := newTestRouter(t)
	rec, env := call(t, router, tokenFor(t, "e2", auth.RoleEmployee), http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/dashboard", nil)
	if rec.Code != http.StatusForbidden || env.Error.Code != "forbidden" {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPrimaryBulkSubmitPartialFailure(t *testing.T) {
	router := newTestRouter(t)
	manager := tokenFor(t, "m1", auth.RoleEmployee)

	saveRecord(t, router, manager, "PRIMARY_DOWNWARD", "w1", intPtr(100))
	saveRecord(t, router, manager, "PRIMARY_DOWNWARD", "w2", intPtr(90))
	pending := saveRecord(t, router, manager, "PRIMARY_DOWNWARD", "w3", nil)

	rec, env := call(t, router, manager, http.MethodPost, "/api/v1/evaluation/periods/p1/employees/e1/bulk-submit", map[string]any{
		"stage": "PRIMARY_DOWNWARD",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk submit: expected 200, got %d", rec.Code)
	}
	var result evaluation.BulkSubmitResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SubmittedCount != 2 || result.FailedCount != 1 {
		t.Fatalf("expected 2 submitted and 1 failed, got %+v", result)
	}
	if result.Failures[0].RecordID != pending.ID || result.Failures[0].Reason != evaluation.FailureMissingRequiredField {
		t.Fatalf("unexpected failure %+v", result.Failures[0])
	}

	_, env = call(t, router, manager, http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/dashboard", nil)
	var dashboard evaluation.Dashboard
	if err := json.Unmarshal(env.Data, &dashboard); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if dashboard.Primary.Status != evaluation.StatusInProgress || dashboard.Primary.TotalScore != nil {
		t.Fatalf("expected in-progress primary without score, got %+v", dashboard.Primary)
	}
}

func TestSubmitRecordTwiceConflicts(t *testing.T) {
	router := newTestRouter(t)
	employee := tokenFor(t, "e1", auth.RoleEmployee)
	saved := saveRecord(t, router, employee, "SELF", "w1", intPtr(80))

	rec, _ := call(t, router, employee, http.MethodPost, "/api/v1/evaluation/records/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("first submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec, env := call(t, router, employee, http.MethodPost, "/api/v1/evaluation/records/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusConflict || env.Error.Code != "already_submitted" {
		t.Fatalf("second submit: expected 409, got %d", rec.Code)
	}

	rec, _ = call(t, router, employee, http.MethodPost, "/api/v1/evaluation/records/"+saved.ID+"/cancel", map[string]any{"selfTarget": "evaluator"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec, _ = call(t, router, tokenFor(t, "m1", auth.RoleEmployee), http.MethodPost, "/api/v1/evaluation/records/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign submit: expected 403, got %d", rec.Code)
	}
}

func TestUpsertRejectsInvalidPayload(t *testing.T) {
	router := newTestRouter(t)
	rec, env := call(t, router, tokenFor(t, "e1", auth.RoleEmployee), http.MethodPut, "/api/v1/evaluation/periods/p1/employees/e1/records", map[string]any{
		"workItemId": "w1",
		"stage":      "PEER",
	})
	if rec.Code != http.StatusBadRequest || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation error, got %d %+v", rec.Code, env.Error)
	}
}

func TestGradeBandsAdminOnly(t *testing.T) {
	router, auditLog := newTestRouterWithAudit(t)
	bands := map[string]any{"bands": []map[string]any{
		{"grade": "PASS", "minScore": 60, "maxScore": 100},
		{"grade": "FAIL", "minScore": 0, "maxScore": 59},
	}}

	rec, _ := call(t, router, tokenFor(t, "e1", auth.RoleEmployee), http.MethodPut, "/api/v1/evaluation/periods/p1/grade-bands", bands)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee: expected 403, got %d", rec.Code)
	}

	admin := tokenFor(t, "hr1", auth.RoleAdmin)
	rec, _ = call(t, router, admin, http.MethodPut, "/api/v1/evaluation/periods/p1/grade-bands", bands)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	overlapping := map[string]any{"bands": []map[string]any{
		{"grade": "PASS", "minScore": 50, "maxScore": 100},
		{"grade": "FAIL", "minScore": 0, "maxScore": 59},
	}}
	rec, env := call(t, router, admin, http.MethodPut, "/api/v1/evaluation/periods/p1/grade-bands", overlapping)
	if rec.Code != http.StatusBadRequest || env.Error.Code != "validation_error" {
		t.Fatalf("overlap: expected 400, got %d", rec.Code)
	}

	events, _, err := auditLog.List(context.Background(), audit.Filter{Action: audit.ActionGradeBandsReplaced}, 10, 0)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(events) != 1 || events[0].ActorID != "hr1" || events[0].EntityID != "p1" {
		t.Fatalf("expected one audit event for the accepted change, got %+v", events)
	}

	rec, env = call(t, router, admin, http.MethodGet, "/api/v1/evaluation/audit?limit=5&action="+audit.ActionGradeBandsReplaced, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("audit listing: expected 200, got %d", rec.Code)
	}
	var page struct {
		Items  []audit.Event `json:"items"`
		Total  int           `json:"total"`
		Limit  int           `json:"limit"`
		Offset int           `json:"offset"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode audit page: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Limit != 5 || page.Offset != 0 {
		t.Fatalf("expected a paged audit listing, got %+v", page)
	}
}

func TestAdminListsDashboards(t *testing.T) {
	router := newTestRouter(t)
	rec, env := call(t, router, tokenFor(t, "hr1", auth.RoleAdmin), http.MethodGet, "/api/v1/evaluation/periods/p1/dashboards?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var page struct {
		Items []evaluation.Dashboard `json:"items"`
		Total int                    `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 2 || len(page.Items) != 1 {
		t.Fatalf("unexpected page total=%d items=%d", page.Total, len(page.Items))
	}

	rec, _ = call(t, router, tokenFor(t, "hr1", auth.RoleAdmin), http.MethodGet, "/api/v1/evaluation/periods/nope/dashboards", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing period: expected 404, got %d", rec.Code)
	}
}

func TestReportIsPDF(t *testing.T) {
	router := newTestRouter(t)
	rec, _ := call(t, router, tokenFor(t, "e1", auth.RoleEmployee), http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/report.pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected a pdf, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestDeactivatedRecordDisappears(t *testing.T) {
	router := newTestRouter(t)
	employee := tokenFor(t, "e1", auth.RoleEmployee)
	saved := saveRecord(t, router, employee, "SELF", "w1", intPtr(80))

	rec, _ := call(t, router, employee, http.MethodDelete, "/api/v1/evaluation/records/"+saved.ID, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("employee delete: expected 403, got %d", rec.Code)
	}
	rec, _ = call(t, router, tokenFor(t, "hr1", auth.RoleAdmin), http.MethodDelete, "/api/v1/evaluation/records/"+saved.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d", rec.Code)
	}
	rec, _ = call(t, router, employee, http.MethodPost, "/api/v1/evaluation/records/"+saved.ID+"/submit", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("submit after delete: expected 404, got %d", rec.Code)
	}

	resolution, env := call(t, router, employee, http.MethodGet, "/api/v1/evaluation/periods/p1/employees/e1/assignments", nil)
	if resolution.Code != http.StatusOK {
		t.Fatalf("assignments: expected 200, got %d", resolution.Code)
	}
	var res evaluation.Resolution
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	if len(res.Assignments) != 3 || len(res.Bindings) != 2 {
		t.Fatalf("unexpected resolution %+v", res)
	}
}
