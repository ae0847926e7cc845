package evaluationhandler

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"perfeval/internal/domain/audit"
	"perfeval/internal/domain/auth"
	"perfeval/internal/domain/evaluation"
	"perfeval/internal/requestctx"
	"perfeval/internal/transport/http/api"
	"perfeval/internal/transport/http/middleware"
	"perfeval/internal/transport/http/shared"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Handler struct {
	Service *evaluation.Service
	Audit   audit.Log
}

func NewHandler(service *evaluation.Service, auditLog audit.Log) *Handler {
	return &Handler{Service: service, Audit: auditLog}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/evaluation", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEvaluationAdmin)).Get("/audit", h.handleListAudit)
		r.With(middleware.RequirePermission(auth.PermEvaluationAdmin)).Get("/periods/{periodID}/dashboards", h.handleListDashboards)
		r.With(middleware.RequirePermission(auth.PermEvaluationAdmin)).Put("/periods/{periodID}/grade-bands", h.handleSetGradeBands)
		r.Route("/periods/{periodID}/employees/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermEvaluationRead)).Get("/assignments", h.handleResolve)
			r.With(middleware.RequirePermission(auth.PermEvaluationRead)).Get("/dashboard", h.handleDashboard)
			r.With(middleware.RequirePermission(auth.PermEvaluationRead)).Get("/report.pdf", h.handleReport)
			r.With(middleware.RequirePermission(auth.PermEvaluationWrite)).Put("/records", h.handleUpsertRecord)
			r.With(middleware.RequirePermission(auth.PermEvaluationSubmit)).Post("/bulk-submit", h.handleBulkSubmit)
		})
		r.With(middleware.RequirePermission(auth.PermEvaluationSubmit)).Post("/records/{recordID}/submit", h.handleSubmitRecord)
		r.With(middleware.RequirePermission(auth.PermEvaluationSubmit)).Post("/records/{recordID}/cancel", h.handleCancelSubmission)
		r.With(middleware.RequirePermission(auth.PermEvaluationAdmin)).Delete("/records/{recordID}", h.handleDeactivateRecord)
	})
}

type gradeBandPayload struct {
	Grade    string `json:"grade" validate:"required,max=16"`
	MinScore int    `json:"minScore" validate:"gte=0,lte=100"`
	MaxScore int    `json:"maxScore" validate:"gtefield=MinScore,lte=100"`
}

type gradeBandsPayload struct {
	Bands []gradeBandPayload `json:"bands" validate:"required,dive"`
}

type recordPayload struct {
	WorkItemID string  `json:"workItemId" validate:"required"`
	Stage      string  `json:"stage" validate:"required,oneof=SELF PRIMARY_DOWNWARD SECONDARY_DOWNWARD"`
	RawScore   *int    `json:"rawScore" validate:"omitempty,gte=0"`
	Content    *string `json:"content" validate:"omitempty,max=10000"`
}

type bulkSubmitPayload struct {
	Stage      string `json:"stage" validate:"required,oneof=SELF PRIMARY_DOWNWARD SECONDARY_DOWNWARD"`
	SelfTarget string `json:"selfTarget" validate:"omitempty,oneof=evaluator manager"`
}

type submitPayload struct {
	SelfTarget string `json:"selfTarget" validate:"omitempty,oneof=evaluator manager"`
}

func (h *Handler) handleListDashboards(w http.ResponseWriter, r *http.Request) {
	periodID := chi.URLParam(r, "periodID")
	dashboards, err := h.Service.PeriodDashboards(r.Context(), periodID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.Paginate(dashboards, shared.ParsePagination(r, defaultPageSize, maxPageSize))
	api.Success(w, page, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSetGradeBands(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	var payload gradeBandsPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	bands := make([]evaluation.GradeBand, 0, len(payload.Bands))
	for _, b := range payload.Bands {
		bands = append(bands, evaluation.GradeBand{Grade: b.Grade, MinScore: b.MinScore, MaxScore: b.MaxScore})
	}

	periodID := chi.URLParam(r, "periodID")
	if err := h.Service.SetGradeBands(r.Context(), periodID, bands); err != nil {
		api.FailError(w, err, requestID)
		return
	}
	user, _ := middleware.GetUser(r.Context())
	requestctx.Logger(r.Context()).Info("grade bands replaced", "periodId", periodID, "bands", len(bands), "by", user.EmployeeID)
	h.recordAudit(r, user, audit.ActionGradeBandsReplaced, "period", periodID, payload)
	api.Success(w, map[string]any{"periodId": periodID, "gradeBands": bands}, requestID)
}

// authorizeView admits admins unconditionally and everyone else through the
// employee or evaluator relationship.
func (h *Handler) authorizeView(w http.ResponseWriter, r *http.Request) (employeeID, periodID string, ok bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return "", "", false
	}
	employeeID = chi.URLParam(r, "employeeID")
	periodID = chi.URLParam(r, "periodID")
	if auth.HasPermission(user.Role, auth.PermEvaluationAdmin) {
		return employeeID, periodID, true
	}
	if _, err := h.Service.AuthorizeView(r.Context(), user.EmployeeID, employeeID, periodID); err != nil {
		api.FailError(w, err, requestID)
		return "", "", false
	}
	return employeeID, periodID, true
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	employeeID, periodID, ok := h.authorizeView(w, r)
	if !ok {
		return
	}
	res, err := h.Service.Resolve(r.Context(), employeeID, periodID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	employeeID, periodID, ok := h.authorizeView(w, r)
	if !ok {
		return
	}
	dashboard, err := h.Service.Dashboard(r.Context(), employeeID, periodID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, dashboard, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	employeeID, periodID, ok := h.authorizeView(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.Service.RenderReport(r.Context(), employeeID, periodID, &buf); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="evaluation-`+periodID+`-`+employeeID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		requestctx.Logger(r.Context()).Warn("report write failed", "err", err)
	}
}

func (h *Handler) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload recordPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	rec, err := h.Service.UpsertRecord(r.Context(), evaluation.RecordInput{
		PeriodID:    chi.URLParam(r, "periodID"),
		EmployeeID:  chi.URLParam(r, "employeeID"),
		EvaluatorID: user.EmployeeID,
		WorkItemID:  payload.WorkItemID,
		Stage:       evaluation.Stage(payload.Stage),
		RawScore:    payload.RawScore,
		Content:     payload.Content,
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, rec, requestID)
}

func (h *Handler) handleBulkSubmit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return
	}
	var payload bulkSubmitPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}

	result, err := h.Service.BulkSubmit(r.Context(), evaluation.BulkSubmitRequest{
		EvaluatorID: user.EmployeeID,
		EmployeeID:  chi.URLParam(r, "employeeID"),
		PeriodID:    chi.URLParam(r, "periodID"),
		Stage:       evaluation.Stage(payload.Stage),
		SelfTarget:  evaluation.SelfTarget(payload.SelfTarget),
	})
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, result, requestID)
}

func (h *Handler) decodeSubmit(w http.ResponseWriter, r *http.Request) (auth.UserContext, evaluation.SelfTarget, bool) {
	requestID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestID)
		return auth.UserContext{}, "", false
	}
	var payload submitPayload
	if r.ContentLength != 0 {
		if !shared.DecodeJSON(w, r, &payload, requestID) {
			return auth.UserContext{}, "", false
		}
	}
	return user, evaluation.SelfTarget(payload.SelfTarget), true
}

func (h *Handler) handleSubmitRecord(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.SubmitRecord(r.Context(), chi.URLParam(r, "recordID"), user.EmployeeID, target)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancelSubmission(w http.ResponseWriter, r *http.Request) {
	user, target, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}
	rec, err := h.Service.CancelSubmission(r.Context(), chi.URLParam(r, "recordID"), user.EmployeeID, target)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rec, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivateRecord(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	if err := h.Service.DeactivateRecord(r.Context(), recordID); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	user, _ := middleware.GetUser(r.Context())
	requestctx.Logger(r.Context()).Info("evaluation record deactivated", "recordId", recordID, "by", user.EmployeeID)
	h.recordAudit(r, user, audit.ActionRecordDeactivated, "evaluation_record", recordID, nil)
	api.Success(w, map[string]string{"id": recordID, "status": "deactivated"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) recordAudit(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	evt := audit.Event{
		ActorID:    user.EmployeeID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         shared.ClientIP(r),
	}
	if err := h.Audit.Record(r.Context(), evt, nil, after); err != nil {
		slog.Warn("audit "+action+" failed", "err", err)
	}
}

func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)
	if h.Audit == nil {
		api.Success(w, shared.Page[audit.Event]{Items: []audit.Event{}, Limit: page.Limit, Offset: page.Offset}, requestID)
		return
	}
	query := r.URL.Query()
	events, total, err := h.Audit.List(r.Context(), audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		ActorID:    query.Get("actorId"),
	}, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, requestID)
		return
	}
	api.Success(w, shared.Page[audit.Event]{Items: events, Total: total, Limit: page.Limit, Offset: page.Offset}, requestID)
}
