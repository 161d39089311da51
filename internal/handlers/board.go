package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/benvon/soonish/internal/cache"
	"github.com/benvon/soonish/internal/models"
	"github.com/benvon/soonish/internal/planner"
)

// BoardSourceHeader tells clients whether the board came from the cache
const BoardSourceHeader = "X-Board-Source"

// ActivePlanLister lists plans that are neither completed nor archived
type ActivePlanLister interface {
	ListActive(ctx context.Context) ([]*models.Plan, error)
}

// BoardStore reads and writes board snapshots
type BoardStore interface {
	Get(ctx context.Context, now time.Time) (*planner.Board, error)
	Set(ctx context.Context, board *planner.Board) error
}

// BoardHandler serves the classified views of the plan list
type BoardHandler struct {
	plans  ActivePlanLister
	boards BoardStore
	now    func() time.Time
	logger *zap.Logger
}

// NewBoardHandler creates a board handler. boards may be nil, in which case
// every board is built live.
func NewBoardHandler(plans ActivePlanLister, boards BoardStore, now func() time.Time, logger *zap.Logger) *BoardHandler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardHandler{plans: plans, boards: boards, now: now, logger: logger}
}

// RegisterRoutes registers board routes on the /api/v1 subrouter
func (h *BoardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/board", h.GetBoard).Methods(http.MethodGet)
	r.HandleFunc("/buckets", h.ListBuckets).Methods(http.MethodGet)
	r.HandleFunc("/buckets/{bucket}", h.GetBucket).Methods(http.MethodGet)
	r.HandleFunc("/someday", h.GetSomeday).Methods(http.MethodGet)
}

// BucketInfo describes a visible bucket
type BucketInfo struct {
	Bucket      planner.Bucket `json:"bucket"`
	DisplayName string         `json:"display_name"`
}

// GetBoard handles GET /board. A fresh cached snapshot is served when
// available; otherwise the board is built and cached.
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if h.boards != nil {
		board, err := h.boards.Get(r.Context(), now)
		if err == nil {
			w.Header().Set(BoardSourceHeader, "cache")
			respondJSON(w, http.StatusOK, board)
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("board_cache_read_failed", zap.Error(err))
		}
	}

	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to build board")
		return
	}
	board := planner.BuildBoard(plans, now)

	if h.boards != nil {
		if err := h.boards.Set(r.Context(), board); err != nil {
			h.logger.Warn("board_cache_write_failed", zap.Error(err))
		}
	}
	w.Header().Set(BoardSourceHeader, "live")
	respondJSON(w, http.StatusOK, board)
}

// ListBuckets handles GET /buckets
func (h *BoardHandler) ListBuckets(w http.ResponseWriter, r *http.Request) {
	visible := planner.VisibleBuckets(h.now())
	out := make([]BucketInfo, 0, len(visible))
	for _, b := range visible {
		out = append(out, BucketInfo{Bucket: b, DisplayName: b.DisplayName()})
	}
	respondJSON(w, http.StatusOK, out)
}

// GetBucket handles GET /buckets/{bucket}, ranked by the default sort key
func (h *BoardHandler) GetBucket(w http.ResponseWriter, r *http.Request) {
	bucket, ok := planner.ParseBucket(mux.Vars(r)["bucket"])
	if !ok {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Unknown bucket")
		return
	}
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to retrieve plans")
		return
	}

	now := h.now()
	ranked := planner.SortByDefault(planner.Filter(plans, bucket, now), now)
	views := make([]PlanView, 0, len(ranked))
	for _, p := range ranked {
		views = append(views, PlanView{PlanRecord: p.Record(), Display: Display(p, now)})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"bucket":       bucket,
		"display_name": bucket.DisplayName(),
		"plans":        views,
	})
}

// GetSomeday handles GET /someday: active anytime plans, oldest first
func (h *BoardHandler) GetSomeday(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "Failed to retrieve plans")
		return
	}

	now := h.now()
	someday := planner.SortOldestFirst(planner.Someday(plans), now)
	views := make([]PlanView, 0, len(someday))
	for _, p := range someday {
		views = append(views, PlanView{PlanRecord: p.Record(), Display: Display(p, now)})
	}
	respondJSON(w, http.StatusOK, views)
}
