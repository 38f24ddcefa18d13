package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"matjar/backoffice/internal/domain"
	"matjar/backoffice/internal/entity"
	"matjar/backoffice/internal/format"
	"matjar/backoffice/internal/lifecycle"
	"matjar/backoffice/internal/metrics"
	"matjar/backoffice/internal/service"
	"matjar/backoffice/internal/store"
	"matjar/backoffice/internal/vocab"
)

// Options configures the optional parts of the API. DefaultLanguage answers
// requests without Accept-Language; empty means Arabic.
type Options struct {
	AllowedOrigin   string
	Currency        string
	DefaultLanguage string
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	currency      string
	defaultLabels vocab.Labels
	metrics       *metrics.Metrics
	logger        *zap.Logger
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Currency == "" {
		opts.Currency = format.DefaultCurrency
	}
	defaultLabels := vocab.Default
	if tag, err := language.Parse(opts.DefaultLanguage); err == nil {
		defaultLabels = vocab.For(tag)
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// crypto/rand does not fail on supported platforms.
		panic(fmt.Sprintf("csrf secret: %v", err))
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		currency:      opts.Currency,
		defaultLabels: defaultLabels,
		metrics:       opts.Metrics,
		logger:        opts.Logger.Named("http"),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens of the current and previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(a.observe)
	r.Use(middleware.Recoverer)
	r.Use(a.secure)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Get("/auth/csrf-token", a.handleCSRFToken)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth())

			r.Get("/orders", a.handleListOrders)
			r.Get("/orders/stats", a.handleOrderStats)
			r.Get("/orders/{id}", a.handleGetOrder)
			r.With(a.requireAuth(domain.RoleStaff, domain.RoleAdmin)).
				Post("/orders/{id}/actions", a.handleOrderAction)

			r.Get("/customers", a.handleListCustomers)
			r.Get("/customers/stats", a.handleCustomerStats)
			r.Get("/customers/{id}", a.handleGetCustomer)

			r.Get("/products", a.handleListProducts)
			r.Get("/products/stats", a.handleProductStats)
			r.Get("/products/{id}/movements", a.handleProductMovements)
			r.With(a.requireAuth(domain.RoleStockManager, domain.RoleAdmin)).
				Post("/products/{id}/movements", a.handleStockMovement)

			r.Get("/returns", a.handleListReturns)
			r.Get("/returns/stats", a.handleReturnStats)
			r.With(a.requireAuth(domain.RoleStockManager, domain.RoleAccountant, domain.RoleAdmin)).
				Post("/returns/{id}/actions", a.handleReturnAction)

			r.Route("/reports", func(r chi.Router) {
				r.Use(a.requireAuth(domain.RoleAdmin, domain.RoleAccountant))
				r.Get("/summary", a.handleReportSummary)
				r.Get("/sales", a.handleSalesReport)
				r.Get("/top-products", a.handleTopProducts)
				r.Get("/status-distribution", a.handleStatusDistribution)
				r.Get("/dataset", a.handleDataset)
			})

			r.Group(func(r chi.Router) {
				r.Use(a.requireAuth(domain.RoleAdmin))
				r.Get("/audit-logs", a.handleAuditLogs)
				r.Get("/users", a.handleListUsers)
				r.Post("/users", a.handleCreateUser)
			})
		})
	})

	return r
}

// requireAuth rejects requests without a valid bearer token and, when roles
// are given, tokens of any other role. The actor is stored on the context.
func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				authorization := strings.TrimSpace(r.Header.Get("Authorization"))
				if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
					writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
					return
				}

				token := strings.TrimSpace(authorization[len("Bearer "):])
				parsed, err := a.auth.ParseToken(token)
				if err != nil {
					writeError(w, http.StatusUnauthorized, err)
					return
				}
				actor = parsed
			}

			if len(roles) > 0 && !slices.Contains(roles, actor.Role) {
				writeError(w, http.StatusForbidden, errors.New("forbidden role"))
				return
			}

			next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
		})
	}
}

// csrfExemptPaths are called before the client can hold a CSRF token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
// It writes the error response and returns false when validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch {
		return true
	}
	if slices.Contains(csrfExemptPaths, r.URL.Path) {
		return true
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

// secure sets the security and CORS headers, answers preflight requests,
// caps JSON bodies and checks CSRF tokens.
func (a *API) secure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language, X-CSRF-Token")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Vary", "Origin")
		}

		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe logs every request and records its latency under the matched route
// pattern, so ids in paths do not multiply the metric series.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startedAt := time.Now()
		defer func() {
			elapsed := time.Since(startedAt)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			a.metrics.ObserveRequest(r.Method, route, status, elapsed)

			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", elapsed),
			}
			switch {
			case status >= http.StatusInternalServerError:
				a.logger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				a.logger.Warn("request completed", fields...)
			default:
				a.logger.Info("request completed", fields...)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// labels negotiates the response language and announces it.
func (a *API) labels(w http.ResponseWriter, r *http.Request) vocab.Labels {
	labels := a.defaultLabels
	if header := r.Header.Get("Accept-Language"); header != "" {
		labels = vocab.Match(header)
	}
	w.Header().Set("Content-Language", labels.Tag().String())
	return labels
}

func (a *API) formatter(labels vocab.Labels) *format.Formatter {
	return format.New(a.logger, labels.Tag(), a.currency)
}

// fail writes err with the status its kind maps to.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, store.ErrStaleStock),
		errors.Is(err, store.ErrStaleState):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parseDay reads a YYYY-MM-DD query value as midnight UTC. Empty input yields nil.
func parseDay(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD", raw)
	}
	return &day, nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses carry a generic message; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
