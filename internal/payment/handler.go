package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

/* ============================== Handler ============================== */

type Handler struct {
	Svc *Service
	Log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Svc: svc, Log: log}
}

// RegisterRoutes monta as rotas em /api/payments.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/payments").Subrouter()

	api.HandleFunc("", h.Create).Methods(http.MethodPost)
	api.HandleFunc("", h.List).Methods(http.MethodGet)
	api.HandleFunc("/user/{userId:[0-9]+}", h.ListByUser).Methods(http.MethodGet)
	api.HandleFunc("/user/{userId:[0-9]+}/summary", h.Summary).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.Get).Methods(http.MethodGet)
	api.HandleFunc("/{id:[0-9]+}", h.Update).Methods(http.MethodPut)
	api.HandleFunc("/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/{id:[0-9]+}/mark-paid", h.MarkPaid).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/paypal-order", h.CreatePaypalOrder).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}/paypal-capture", h.CapturePaypal).Methods(http.MethodGet)
}

/* ============================== Utilidades ============================== */

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func pathID(r *http.Request, key string) (uint, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)[key], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// fail traduz os erros do Service para status HTTP.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "Pago no encontrado")
	case errors.Is(err, ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "Estudiante no encontrado")
	case errors.Is(err, ErrAlreadySettled), errors.Is(err, ErrOrderMismatch):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrGateway):
		h.Log.Error("erro do processador", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Error con el procesador de pagos PayPal")
	default:
		h.Log.Error("erro interno", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error interno del servidor")
	}
}

/* ============================== Endpoints ============================== */

// POST /api/payments
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON mal formado")
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ToView(*p, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// GET /api/payments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToViews(ps, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// GET /api/payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToView(*p, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// PUT /api/payments/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	var in UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "JSON mal formado")
		return
	}
	p, err := h.Svc.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToView(*p, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// DELETE /api/payments/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/payments/{id}/mark-paid
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	p, err := h.Svc.MarkPaid(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToView(*p, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// GET /api/payments/user/{userId}
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de usuario inválido")
		return
	}
	ps, err := h.Svc.ListByOwner(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ToViews(ps, LabelLanguage(r.Header.Get("Accept-Language"))))
}

// GET /api/payments/user/{userId}/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(r, "userId")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de usuario inválido")
		return
	}
	sum, err := h.Svc.Summary(r.Context(), uid)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

/* ============================== PayPal ============================== */

// POST /api/payments/{id}/paypal-order
func (h *Handler) CreatePaypalOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	order, err := h.Svc.CreateSettlementOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// GET /api/payments/{id}/paypal-capture?token=<orderId>&state=<jwt>
// Retorno do PayPal: captura e redireciona o pagador para a página de sucesso.
func (h *Handler) CapturePaypal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "ID de pago inválido")
		return
	}
	q := r.URL.Query()
	out, err := h.Svc.CaptureSettlement(r.Context(), id, q.Get("token"), q.Get("state"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.Log.Info("retorno do paypal",
		zap.Uint("payment_id", out.PaymentID),
		zap.String("transaction_id", out.TransactionID),
		zap.Bool("replayed", out.Replayed),
		zap.Bool("inconclusive", out.Inconclusive),
	)
	http.Redirect(w, r, h.Svc.SuccessRedirect(out), http.StatusFound)
}
