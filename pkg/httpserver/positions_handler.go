package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/kalshi-sports/live-engine/internal/positions"
	"go.uber.org/zap"
)

// PositionsHandler serves a read-only JSON snapshot of open positions, for
// an external dashboard to poll instead of reading the persistence file
// directly.
type PositionsHandler struct {
	store  *positions.Store
	logger *zap.Logger
}

// NewPositionsHandler creates a new positions handler.
func NewPositionsHandler(store *positions.Store, logger *zap.Logger) *PositionsHandler {
	return &PositionsHandler{store: store, logger: logger}
}

// HandlePositions handles GET /api/positions requests.
func (h *PositionsHandler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	open := h.store.GetOpenPositions()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(open); err != nil {
		h.logger.Error("failed-to-encode-positions-response", zap.Error(err))
	}
}
