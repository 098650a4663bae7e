package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	messaging "ygbackend/contexts/communications/messaging-service"
	notification "ygbackend/contexts/communications/notification-service"
	media "ygbackend/contexts/content/media-service"
	payout "ygbackend/contexts/finance-core/payout-service"
	royalty "ygbackend/contexts/finance-core/royalty-service"
	jobmonitor "ygbackend/contexts/internal-ops/job-monitor-service"
	ipasset "ygbackend/contexts/rights-management/ip-asset-service"
	license "ygbackend/contexts/rights-management/license-service"
	"ygbackend/internal/platform/auth"
	"ygbackend/internal/platform/errtrack"
	_ "ygbackend/internal/platform/httpserver/docs"
	"ygbackend/internal/platform/ratelimit"
)

const moduleName = "internal/platform/httpserver"

// Modules are the bounded contexts served over HTTP.
type Modules struct {
	IPAsset      ipasset.Module
	License      license.Module
	Media        media.Module
	Messaging    messaging.Module
	Notification notification.Module
	Royalty      royalty.Module
	Payout       payout.Module
	JobMonitor   jobmonitor.Module
}

type Options struct {
	Addr         string
	Tokens       auth.Tokens
	Limiter      *ratelimit.FixedWindowLimiter
	CORSOrigins  []string
	AdminUserIDs []string
	Reporter     errtrack.Reporter
	Logger       *slog.Logger
}

type Server struct {
	router   chi.Router
	logger   *slog.Logger
	addr     string
	tokens   auth.Tokens
	limiter  *ratelimit.FixedWindowLimiter
	reporter errtrack.Reporter
	admins   []string
	modules  Modules
	tracer   trace.Tracer
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(modules Modules, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := opts.Addr
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		addr:     addr,
		tokens:   opts.Tokens,
		limiter:  opts.Limiter,
		reporter: opts.Reporter,
		admins:   append([]string(nil), opts.AdminUserIDs...),
		modules:  modules,
		tracer:   otel.Tracer(moduleName),
	}
	s.registerRoutes(opts.CORSOrigins)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled and then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", moduleName,
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", moduleName,
		"layer", "platform",
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", "Stripe-Signature"},
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(s.traceRequests)
	r.Use(s.logRequests)
	r.Use(s.authenticate)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Stripe authenticates itself with the webhook signature.
	r.Post("/v1/payouts/webhooks/stripe", s.handleStripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		s.registerIPAssetRoutes(r)
		s.registerLicenseRoutes(r)
		s.registerMediaRoutes(r)
		s.registerMessagingRoutes(r)
		s.registerNotificationRoutes(r)
		s.registerRoyaltyRoutes(r)
		s.registerPayoutRoutes(r)
		r.Route("/v1/admin/jobs", func(r chi.Router) {
			r.Use(s.requireAdmin)
			s.registerJobRoutes(r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
}

func (s *Server) traceRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("url.path", r.URL.Path),
			),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		if pattern := routePattern(r); pattern != "" {
			span.SetName(r.Method + " " + pattern)
			span.SetAttributes(attribute.String("http.route", pattern))
		}
		span.SetAttributes(attribute.Int("http.response.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(r.Context(), level, "http request completed",
			"event", "http_request_completed",
			"module", moduleName,
			"layer", "platform",
			"method", r.Method,
			"route", routePattern(r),
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(started).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// authenticate resolves the bearer token when one is sent. Routes that need
// a caller are wrapped in requireAuth.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			next.ServeHTTP(w, r)
			return
		}
		principal, err := s.tokens.Verify(auth.BearerToken(header))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token is invalid or expired")
			return
		}
		if !principal.IsAdmin() && slices.Contains(s.admins, principal.UserID) {
			principal.Role = auth.RoleAdmin
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := auth.FromContext(r.Context())
		if !principal.IsAdmin() {
			writeError(w, http.StatusForbidden, "forbidden", "admin role is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		key := "ip:" + resolveClientIP(r)
		if principal, ok := auth.FromContext(r.Context()); ok {
			key = "user:" + principal.UserID
		}
		decision := s.limiter.Take(key)
		header := w.Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		header.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			header.Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// principal is only called behind requireAuth.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

type errorMapper func(error) (int, string, bool)

// writeDomainError maps a context error to a status and code. Anything the
// mapper does not recognise is a 500 and goes to error tracking.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, mapper errorMapper) {
	if status, code, ok := mapper(err); ok {
		writeError(w, status, code, err.Error())
		return
	}
	s.reporter.Capture(r.Context(), err, map[string]string{
		"route":  routePattern(r),
		"method": r.Method,
	})
	s.logger.Error("request failed",
		"event", "http_request_failed",
		"module", moduleName,
		"layer", "platform",
		"route", routePattern(r),
		"error", err.Error(),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON writes the 400 itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be an integer")
		return 0, false
	}
	return value, true
}

func queryBool(r *http.Request, name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && value
}

// createdStatus answers a replayed create with 200 instead of 201.
func createdStatus(replayed bool) int {
	if replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

func resolveClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
