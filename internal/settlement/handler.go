package settlement

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handler struct {
	Repo *EventRepository
	Log  *zap.Logger
}

func NewHandler(repo *EventRepository, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Repo: repo, Log: log}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/settlements").Subrouter()
	api.HandleFunc("/reconciliation", h.ListReconciliation).Methods(http.MethodGet)
	api.HandleFunc("/payments/{id:[0-9]+}", h.ListByPayment).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/settlements/reconciliation
func (h *Handler) ListReconciliation(w http.ResponseWriter, r *http.Request) {
	es, err := h.Repo.ListNeedingReconciliation(r.Context())
	if err != nil {
		h.Log.Error("erro ao listar eventos para conciliação", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error obteniendo eventos de conciliación"})
		return
	}
	writeJSON(w, http.StatusOK, es)
}

// GET /api/settlements/payments/{id}
func (h *Handler) ListByPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ID de pago inválido"})
		return
	}
	es, err := h.Repo.ListByPayment(r.Context(), uint(id))
	if err != nil {
		h.Log.Error("erro ao listar eventos do pagamento", zap.Uint64("payment_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Error obteniendo eventos del pago"})
		return
	}
	writeJSON(w, http.StatusOK, es)
}
