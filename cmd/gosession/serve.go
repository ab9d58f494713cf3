package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	goSession "github.com/MrEthical07/goSession"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxRequestBody = 64 << 10

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session controller over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.Serve.Addr
				}
				return serve(ctx, addr, a)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

func serve(ctx context.Context, addr string, a *app) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(a.controller, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sessionHandler exposes a controller as JSON endpoints.
type sessionHandler struct {
	controller *goSession.Controller
	logger     *slog.Logger
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type errorResponse struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	State   stateView `json:"state"`
}

type userResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	Provider   string    `json:"provider"`
	SignedInAt time.Time `json:"signed_in_at"`
}

func newRouter(c *goSession.Controller, logger *slog.Logger) http.Handler {
	h := &sessionHandler{controller: c, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(auditContext)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.get)
		r.Post("/sign-in", h.signIn)
		r.Post("/sign-up", h.signUp)
		r.Post("/sign-out", h.signOut)
		r.Post("/refresh", h.refresh)
		r.With(middleware.RequireSignedIn(c)).Get("/user", h.user)
	})
	r.Method(http.MethodGet, "/metrics", promexport.NewPrometheusExporter(c).Handler())

	return r
}

// auditContext copies the request ID, client address and any incoming trace
// context into the request context so audit events and spans can be
// correlated with requests.
func auditContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		if id := chimw.GetReqID(ctx); id != "" {
			ctx = goSession.WithRequestID(ctx, id)
		}
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			host = h
		}
		ctx = goSession.WithClientIP(ctx, host)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(h.controller.State()))
}

func (h *sessionHandler) user(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Provider:   u.Provider,
		SignedInAt: u.SignedInAt,
	})
}

func (h *sessionHandler) signIn(w http.ResponseWriter, r *http.Request) {
	h.credentials(w, r, h.controller.SignIn)
}

func (h *sessionHandler) signUp(w http.ResponseWriter, r *http.Request) {
	h.credentials(w, r, h.controller.SignUp)
}

func (h *sessionHandler) credentials(w http.ResponseWriter, r *http.Request, call func(context.Context, string, string) error) {
	var req credentialsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    "bad_request",
			Message: "request body must be a JSON object with email and password",
			State:   viewOf(h.controller.State()),
		})
		return
	}
	if err := call(r.Context(), req.Email, req.Password); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(h.controller.State()))
}

func (h *sessionHandler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SignOut(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(h.controller.State()))
}

func (h *sessionHandler) refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.RefreshFromProvider(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(h.controller.State()))
}

func (h *sessionHandler) writeError(w http.ResponseWriter, err error) {
	kind := goSession.KindOf(err)
	status := statusFor(kind, err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("session operation failed", "kind", kind.String(), "error", err)
	}
	writeJSON(w, status, errorResponse{
		Code:    kind.String(),
		Message: err.Error(),
		State:   viewOf(h.controller.State()),
	})
}

func statusFor(kind goSession.ErrorKind, err error) int {
	if errors.Is(err, goSession.ErrControllerClosed) {
		return http.StatusServiceUnavailable
	}
	switch kind {
	case goSession.ErrorValidation, goSession.ErrorInvalidEmail, goSession.ErrorWeakPassword:
		return http.StatusBadRequest
	case goSession.ErrorInvalidCredentials:
		return http.StatusUnauthorized
	case goSession.ErrorUserDisabled:
		return http.StatusForbidden
	case goSession.ErrorAccountExists:
		return http.StatusConflict
	case goSession.ErrorRateLimited:
		return http.StatusTooManyRequests
	case goSession.ErrorUnavailable:
		return http.StatusBadGateway
	case goSession.ErrorCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
