package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/core/domain"
	"github.com/rl1809/cartsync/internal/core/service"
)

// HTTPHandler exposes one session's CartStore as a local JSON API for
// presentation layers.
type HTTPHandler struct {
	store  *service.CartStore
	logger *zap.Logger
}

type AddItemHTTPRequest struct {
	ProductID any  `json:"product_id"`
	Quantity  *int `json:"quantity"`
}

type UpdateItemHTTPRequest struct {
	Quantity *int `json:"quantity"`
}

type FailureHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func NewHTTPHandler(store *service.CartStore, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{store: store, logger: logger}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/refresh", h.Refresh)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productId}", h.UpdateItem)
		r.Delete("/items/{productId}", h.RemoveItem)
		r.Post("/clear", h.Clear)
		r.Delete("/notification", h.DismissNotification)
	})

	return r
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.View())
}

func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.store.Refresh(r.Context()))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemHTTPRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	h.respond(w, h.store.AddToCart(r.Context(), productIDString(req.ProductID), quantity))
}

func (h *HTTPHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.respond(w, h.store.UpdateItemQuantity(r.Context(), chi.URLParam(r, "productId"), *req.Quantity))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.store.RemoveFromCart(r.Context(), chi.URLParam(r, "productId")))
}

func (h *HTTPHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.store.ClearCart(r.Context()))
}

func (h *HTTPHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.store.DismissNotification()
	writeJSON(w, http.StatusOK, h.store.View())
}

// respond writes the current view on success, or the user-facing message
// with a status derived from the error.
func (h *HTTPHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeFailure(w, statusFor(err), service.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, h.store.View())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrMissingProductID):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOperationPending), errors.Is(err, service.ErrSessionDiscarded):
		return http.StatusConflict
	}

	switch domain.KindOf(err) {
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindServer:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// productIDString accepts product_id as a JSON string or number.
func productIDString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, FailureHTTPResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
