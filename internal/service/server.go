package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shortlinks/internal/types"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes   = 1 << 20
	defaultQRSize  = 256
	minQRSize      = 64
	maxQRSize      = 1024
	shutdownPeriod = 5 * time.Second
)

type Server struct {
	port      string
	shortener *Shortener
	analytics *Aggregator

	shortenLimiter   *IPRateLimiter
	analyticsLimiter *IPRateLimiter
	apiLimiter       *IPRateLimiter
}

func NewServer(port string, shortener *Shortener, analytics *Aggregator) *Server {
	return &Server{
		port:             port,
		shortener:        shortener,
		analytics:        analytics,
		shortenLimiter:   NewIPRateLimiter(rate.Every(45*time.Second), 20),
		analyticsLimiter: NewIPRateLimiter(rate.Every(2*time.Second), 30),
		apiLimiter:       NewIPRateLimiter(rate.Every(9*time.Second), 100),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/url/shorten", s.shortenLimiter.Middleware(s.handleShorten))
	mux.HandleFunc("GET /api/url/{id}/analytics", s.analyticsLimiter.Middleware(s.handleAnalytics))
	mux.HandleFunc("GET /api/url/{id}/clicks", s.analyticsLimiter.Middleware(s.handleClicks))
	mux.HandleFunc("GET /api/url/{id}/qr", s.apiLimiter.Middleware(s.handleQRCode))
	mux.HandleFunc("DELETE /api/url/{id}", s.apiLimiter.Middleware(s.handleDeactivate))
	mux.HandleFunc("GET /{code}", s.handlerRedirect)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	for _, l := range []*IPRateLimiter{s.shortenLimiter, s.analyticsLimiter, s.apiLimiter} {
		go l.Cleanup(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() { errChan <- srv.ListenAndServe() }()
	slog.Info("HTTP server listening", "port", s.port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Request body must be JSON with a url field."))
		return
	}

	link, created, err := s.shortener.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dataBody(s.shortener.View(link)))
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	days, ok := intQuery(w, r, "days", DefaultWindowDays)
	if !ok {
		return
	}

	link, summary, err := s.analytics.GetAnalytics(r.Context(), id, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody(map[string]any{
		"url":       s.shortener.View(link),
		"analytics": summary,
	}))
}

func (s *Server) handleClicks(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	limit, ok := intQuery(w, r, "limit", DefaultHistoryLimit)
	if !ok {
		return
	}

	events, err := s.analytics.RecentClicks(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dataBody(events))
}

func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	size, ok := intQuery(w, r, "size", defaultQRSize)
	if !ok {
		return
	}
	size = max(minQRSize, min(size, maxQRSize))

	png, err := s.shortener.QRCode(r.Context(), id, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(png)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	if err := s.shortener.Deactivate(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlerRedirect answers as soon as the lookup is done; the click is
// recorded in the background.
func (s *Server) handlerRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	target, err := s.shortener.ResolveAndRedirect(r.Context(), code, types.Visit{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		At:        time.Now(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func linkID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid ID format"))
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(key+" must be an integer"))
		return 0, false
	}
	return n, true
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidURL),
		errors.Is(err, ErrInvalidCode),
		errors.Is(err, ErrReservedCode),
		errors.Is(err, ErrInvalidExpiry),
		errors.Is(err, ErrInvalidWindow):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrCodeTaken):
		return http.StatusConflict, "Custom short code is already taken"
	case errors.Is(err, ErrLinkExpired):
		return http.StatusGone, "Short URL has expired"
	case errors.Is(err, ErrLinkInactive):
		return http.StatusNotFound, "Short URL is no longer active"
	case errors.Is(err, ErrLinkNotFound):
		return http.StatusNotFound, "Short URL not found"
	case errors.Is(err, ErrCodeGenerationExhausted):
		return http.StatusInternalServerError, "Failed to generate unique short code. Please try again."
	case errors.Is(err, types.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody(msg))
}

func dataBody(data any) map[string]any {
	return map[string]any{"success": true, "data": data}
}

func errorBody(msg string) map[string]any {
	return map[string]any{"success": false, "error": msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
