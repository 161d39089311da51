package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/database"
	logpkg "github.com/benvon/soonish/internal/logger"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
	"github.com/benvon/soonish/internal/validation"
)

// MaxTitleLength bounds plan titles accepted over the API
const MaxTitleLength = 200

// PlanHandler handles plan management requests
type PlanHandler struct {
	store  database.PlanStore
	now    func() time.Time
	logger *zap.Logger
}

// NewPlanHandler creates a new plan handler. now supplies the reference
// instant for derivation and display.
func NewPlanHandler(store database.PlanStore, now func() time.Time, logger *zap.Logger) *PlanHandler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlanHandler{store: store, now: now, logger: logger}
}

// RegisterRoutes registers plan routes on the given router
// Router should be a subrouter with /api/v1/plans prefix
func (h *PlanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListPlans).Methods(http.MethodGet)
	r.HandleFunc("", h.CreatePlan).Methods(http.MethodPost)
	r.HandleFunc("/{id}", h.GetPlan).Methods(http.MethodGet)
	r.HandleFunc("/{id}", h.DeletePlan).Methods(http.MethodDelete)
	r.HandleFunc("/{id}/title", h.RenamePlan).Methods(http.MethodPut)
	r.HandleFunc("/{id}/memo", h.SetMemo).Methods(http.MethodPut)
	r.HandleFunc("/{id}/time-mode", h.SetTimeMode).Methods(http.MethodPut)
	r.HandleFunc("/{id}/toggle-complete", h.ToggleComplete).Methods(http.MethodPost)
	r.HandleFunc("/{id}/toggle-archive", h.ToggleArchive).Methods(http.MethodPost)
	r.HandleFunc("/{id}/rederive", h.Rederive).Methods(http.MethodPost)
}

// TimeModeRequest selects a time mode and its preset
type TimeModeRequest struct {
	TimeMode           string     `json:"time_mode" validate:"required,time_mode"`
	PeriodPreset       *string    `json:"period_preset,omitempty" validate:"omitempty,period_preset"`
	DeadlinePreset     *string    `json:"deadline_preset,omitempty" validate:"omitempty,deadline_preset"`
	CustomDeadlineDate *time.Time `json:"custom_deadline_date,omitempty"`
}

// CreatePlanRequest is the body of POST /plans
type CreatePlanRequest struct {
	Title string  `json:"title" validate:"notblank,max=200"`
	Memo  *string `json:"memo,omitempty" validate:"omitempty,max=2000"`
	TimeModeRequest
}

// RenamePlanRequest is the body of PUT /plans/{id}/title
type RenamePlanRequest struct {
	Title string `json:"title" validate:"notblank,max=200"`
}

// SetMemoRequest is the body of PUT /plans/{id}/memo. A null memo clears it.
type SetMemoRequest struct {
	Memo *string `json:"memo" validate:"omitempty,max=2000"`
}

// PlanView is a plan with its display state at the time of the response
type PlanView struct {
	models.PlanRecord
	Display PlanDisplay `json:"display"`
}

// PlanDisplay is derived from the plan and the current instant, never stored
type PlanDisplay struct {
	PeriodText    string           `json:"period_text,omitempty"`
	RemainingText string           `json:"remaining_text,omitempty"`
	ModeName      string           `json:"mode_name"`
	PresetName    string           `json:"preset_name,omitempty"`
	DeadlineNear  bool             `json:"deadline_near"`
	PeriodExpired bool             `json:"period_expired"`
	Buckets       []planner.Bucket `json:"buckets"`
	SortKey       float64          `json:"sort_key"`
}

func (m TimeModeRequest) toMode() (models.TimeMode, error) {
	if err := validation.Struct(m); err != nil {
		return nil, err
	}
	preset := ""
	switch models.TimeModeKind(m.TimeMode) {
	case models.TimeModePeriod:
		if m.PeriodPreset != nil {
			preset = *m.PeriodPreset
		}
	case models.TimeModeDeadline:
		if m.DeadlinePreset != nil {
			preset = *m.DeadlinePreset
		}
	}
	return models.ParseTimeMode(m.TimeMode, preset, m.CustomDeadlineDate)
}

// ListPlans handles GET /plans. ?all=true includes completed and archived
// plans.
func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	var (
		plans []*models.Plan
		err   error
	)
	if r.URL.Query().Get("all") == "true" {
		plans, err = h.store.ListAll(r.Context())
	} else {
		plans, err = h.store.ListActive(r.Context())
	}
	if err != nil {
		respondError(w, h.logger, err, "Failed to retrieve plans")
		return
	}

	now := h.now()
	views := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		views = append(views, h.view(p, now))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"plans": views,
		"count": len(views),
	})
}

// CreatePlan handles POST /plans
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Title = validation.SanitizeText(req.Title)
	if err := validation.Struct(req); err != nil {
		respondError(w, h.logger, err, "Invalid plan")
		return
	}
	mode, err := req.toMode()
	if err != nil {
		respondError(w, h.logger, err, "Invalid time mode")
		return
	}

	now := h.now()
	plan, err := models.NewPlan(req.Title, mode, req.Memo, now)
	if err != nil {
		respondError(w, h.logger, err, "Invalid plan")
		return
	}
	if err := h.store.Insert(r.Context(), plan); err != nil {
		respondError(w, h.logger, err, "Failed to create plan")
		return
	}

	h.logger.Info("plan_created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("time_mode", string(plan.Kind())),
		zap.String("title", logpkg.SanitizeTitle(plan.Title)),
	)
	respondJSON(w, http.StatusCreated, h.view(plan, now))
}

// GetPlan handles GET /plans/{id}
func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "plan")
	if !ok {
		return
	}
	plan, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err, "Failed to retrieve plan")
		return
	}
	respondJSON(w, http.StatusOK, h.view(plan, h.now()))
}

// DeletePlan handles DELETE /plans/{id}
func (h *PlanHandler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "plan")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		respondError(w, h.logger, err, "Failed to delete plan")
		return
	}
	h.logger.Info("plan_deleted", zap.String("plan_id", id.String()))
	respondJSON(w, http.StatusOK, map[string]any{"id": id})
}

// RenamePlan handles PUT /plans/{id}/title
func (h *PlanHandler) RenamePlan(w http.ResponseWriter, r *http.Request) {
	var req RenamePlanRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	title := validation.SanitizeText(req.Title)
	h.mutate(w, r, "plan_renamed", func(p *models.Plan, now time.Time) error {
		return p.Rename(title, now)
	})
}

// SetMemo handles PUT /plans/{id}/memo
func (h *PlanHandler) SetMemo(w http.ResponseWriter, r *http.Request) {
	var req SetMemoRequest
	if !h.decodeValid(w, r, &req) {
		return
	}
	h.mutate(w, r, "plan_memo_set", func(p *models.Plan, now time.Time) error {
		p.SetMemo(req.Memo, now)
		return nil
	})
}

// SetTimeMode handles PUT /plans/{id}/time-mode. The derived dates are
// recomputed from the new mode.
func (h *PlanHandler) SetTimeMode(w http.ResponseWriter, r *http.Request) {
	var req TimeModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mode, err := req.toMode()
	if err != nil {
		respondError(w, h.logger, err, "Invalid time mode")
		return
	}
	h.mutate(w, r, "plan_time_mode_set", func(p *models.Plan, now time.Time) error {
		return p.SetTimeMode(mode, now)
	})
}

// ToggleComplete handles POST /plans/{id}/toggle-complete
func (h *PlanHandler) ToggleComplete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "plan_completion_toggled", func(p *models.Plan, now time.Time) error {
		p.ToggleCompleted(now)
		return nil
	})
}

// ToggleArchive handles POST /plans/{id}/toggle-archive
func (h *PlanHandler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "plan_archive_toggled", func(p *models.Plan, now time.Time) error {
		p.ToggleArchived(now)
		return nil
	})
}

// Rederive handles POST /plans/{id}/rederive, recomputing relative presets
// against the current instant
func (h *PlanHandler) Rederive(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "plan_rederived", func(p *models.Plan, now time.Time) error {
		return p.Rederive(now)
	})
}

func (h *PlanHandler) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}
	if err := validation.Struct(dst); err != nil {
		respondError(w, h.logger, err, "Invalid request")
		return false
	}
	return true
}

func (h *PlanHandler) mutate(w http.ResponseWriter, r *http.Request, event string, fn func(*models.Plan, time.Time) error) {
	id, ok := pathID(w, r, "plan")
	if !ok {
		return
	}
	now := h.now()
	plan, err := h.store.Update(r.Context(), id, func(p *models.Plan) error {
		return fn(p, now)
	})
	if err != nil {
		respondError(w, h.logger, err, "Failed to update plan")
		return
	}
	h.logger.Info(event, zap.String("plan_id", id.String()))
	respondJSON(w, http.StatusOK, h.view(plan, now))
}

func (h *PlanHandler) view(p *models.Plan, now time.Time) PlanView {
	return PlanView{PlanRecord: p.Record(), Display: Display(p, now)}
}

// Display computes the render state of p at now
func Display(p *models.Plan, now time.Time) PlanDisplay {
	d := PlanDisplay{
		PeriodText:    planner.PeriodDisplayText(p, now),
		RemainingText: planner.RemainingText(p, now),
		ModeName:      p.Kind().DisplayName(),
		DeadlineNear:  planner.IsDeadlineNear(p, now),
		PeriodExpired: planner.IsPeriodExpired(p, now),
		Buckets:       []planner.Bucket{},
		SortKey:       planner.SortKey(p, now),
	}
	if preset, ok := p.PeriodPreset(); ok {
		d.PresetName = preset.DisplayName()
	} else if preset, ok := p.DeadlinePreset(); ok {
		d.PresetName = preset.DisplayName()
	}
	for _, b := range planner.VisibleBuckets(now) {
		if planner.BelongsTo(p, b, now) {
			d.Buckets = append(d.Buckets, b)
		}
	}
	return d
}
