package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"relay/internal/auth"
	"relay/internal/dto"
	"relay/internal/observability/metrics"
	obsmw "relay/internal/observability/middleware"
	"relay/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	ContactRatePerMin int
	CORSOrigins       string
}

func NewRouter(svc *service.Relay, verifier *auth.Verifier, opts Options) http.Handler {
	h := &handler{svc: svc}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if opts.CORSOrigins != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   strings.Split(opts.CORSOrigins, ","),
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Registration surface, populated by the out-of-scope registration flow.
	r.Post("/v1/registry/devices", h.handleRegisterDevice)

	r.Group(func(r chi.Router) {
		r.Use(verifier.Middleware)

		r.Get("/v1/registry/devices", h.handleListDevices)
		r.Delete("/v1/registry/users/{userID}", h.handleRemoveUser)

		r.Post("/v1/relay/deposit", h.handleDeposit)
		r.Post("/v1/relay/inbox/{deviceID}/drain", h.handleDrainInbox)
		r.Post("/v1/relay/contact-inbox/{deviceID}/drain", h.handleDrainContactInbox)

		r.Group(func(r chi.Router) {
			rate := opts.ContactRatePerMin
			if rate <= 0 {
				rate = 10
			}
			r.Use(httprate.LimitByIP(rate, time.Minute))
			r.Post("/v1/relay/contact", h.handleDepositContact)
		})
	})

	return r
}

type handler struct {
	svc *service.Relay
}

func (h *handler) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	reqID := obsmw.RequestIDFromContext(r.Context())
	var req dto.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		metrics.DeviceRegistrationsTotal.WithLabelValues("failure").Inc()
		return
	}
	res, err := h.svc.RegisterDevice(r.Context(), req)
	if err != nil {
		writeError(w, err)
		metrics.DeviceRegistrationsTotal.WithLabelValues("failure").Inc()
		slog.Warn("device registration failed", "error", err, "request_id", reqID)
		return
	}
	metrics.DeviceRegistrationsTotal.WithLabelValues("success").Inc()
	slog.Info("device registered", "device_id", res.DeviceID, "user_id", res.UserID, "request_id", reqID)
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.URL.Query().Get("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	res, err := h.svc.ListDevices(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	reqID := obsmw.RequestIDFromContext(r.Context())
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	// Only self-removal; account administration lives elsewhere.
	if caller.UserID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	removed, err := h.svc.RemoveUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		slog.Warn("remove user failed", "error", err, "request_id", reqID)
		return
	}
	slog.Info("user data removed", "user_id", userID, "request_id", reqID, "counts", removed)
	writeJSON(w, http.StatusOK, removed)
}

func (h *handler) handleDeposit(w http.ResponseWriter, r *http.Request) {
	reqID := obsmw.RequestIDFromContext(r.Context())
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		metrics.DepositsTotal.WithLabelValues("inbox", "failure").Inc()
		return
	}
	res, err := h.svc.Deposit(r.Context(), caller, req)
	if err != nil {
		writeError(w, err)
		metrics.DepositsTotal.WithLabelValues("inbox", "failure").Inc()
		slog.Warn("deposit failed", "error", err, "target", req.TargetUserID, "request_id", reqID)
		return
	}
	metrics.DepositsTotal.WithLabelValues("inbox", "success").Inc()
	if !res.Duplicate {
		metrics.FanoutDevices.WithLabelValues("inbox").Observe(float64(res.Delivered))
	}
	slog.Info("deposit delivered", "target", req.TargetUserID, "devices", res.Delivered, "duplicate", res.Duplicate, "request_id", reqID)
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) handleDepositContact(w http.ResponseWriter, r *http.Request) {
	reqID := obsmw.RequestIDFromContext(r.Context())
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req dto.ContactDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		metrics.DepositsTotal.WithLabelValues("contact", "failure").Inc()
		return
	}
	res, err := h.svc.DepositContact(r.Context(), caller, req)
	if err != nil {
		writeError(w, err)
		metrics.DepositsTotal.WithLabelValues("contact", "failure").Inc()
		slog.Warn("contact deposit failed", "error", err, "provider", req.ProviderID, "request_id", reqID)
		return
	}
	metrics.DepositsTotal.WithLabelValues("contact", "success").Inc()
	metrics.FanoutDevices.WithLabelValues("contact").Observe(float64(res.Delivered))
	slog.Info("contact request delivered", "provider", req.ProviderID, "devices", res.Delivered, "request_id", reqID)
	writeJSON(w, http.StatusCreated, res)
}

func (h *handler) handleDrainInbox(w http.ResponseWriter, r *http.Request) {
	h.drain(w, r, "inbox")
}

func (h *handler) handleDrainContactInbox(w http.ResponseWriter, r *http.Request) {
	h.drain(w, r, "contact")
}

func (h *handler) drain(w http.ResponseWriter, r *http.Request, kind string) {
	reqID := obsmw.RequestIDFromContext(r.Context())
	caller, ok := auth.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	deviceID, err := uuid.Parse(chi.URLParam(r, "deviceID"))
	if err != nil {
		http.Error(w, "invalid device id", http.StatusBadRequest)
		metrics.DrainsTotal.WithLabelValues(kind, "failure").Inc()
		return
	}

	var (
		res   any
		count int
	)
	if kind == "inbox" {
		out, derr := h.svc.Retrieve(r.Context(), caller, deviceID)
		res, count, err = out, len(out.Messages), derr
	} else {
		out, derr := h.svc.RetrieveContact(r.Context(), caller, deviceID)
		res, count, err = out, len(out.Requests), derr
	}
	if err != nil {
		writeError(w, err)
		metrics.DrainsTotal.WithLabelValues(kind, "failure").Inc()
		slog.Warn("drain failed", "error", err, "kind", kind, "device_id", deviceID, "request_id", reqID)
		return
	}
	metrics.DrainsTotal.WithLabelValues(kind, "success").Inc()
	slog.Info("mailbox drained", "kind", kind, "device_id", deviceID, "entries", count, "request_id", reqID)
	writeJSON(w, http.StatusOK, res)
}

// writeError maps service errors to statuses without leaking store detail on
// internal failures.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrTargetHasNoDevices), errors.Is(err, service.ErrDeviceNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
