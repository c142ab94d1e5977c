// Package http is the JSON API surface: record CRUD, dashboard,
// authentication and the websocket change feed.
package http

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fincontrol/internal/auth"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/notify"
	"fincontrol/internal/services"

	"github.com/olahol/melody"
)

// localOwner is the single profile the unauthenticated local backend
// serves.
const localOwner = "local"

// lruCache with TTL and size-based eviction.
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries.
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
	return len(toRemove)
}

// dashboardPayload is the cached dashboard response body.
type dashboardPayload struct {
	Totals core.Totals       `json:"totals"`
	Chart  []core.ChartPoint `json:"chart"`
}

// metrics are plain atomic counters served by /metrics.
type metrics struct {
	requestsTotal  atomic.Int64
	requestsFailed atomic.Int64
	wsConnections  atomic.Int64
	eventsOut      atomic.Int64
	cacheHits      atomic.Int64
	cacheMisses    atomic.Int64
}

// Server is the HTTP front of the application.
type Server struct {
	http.Server

	ledger   *services.Ledger
	authSvc  *auth.Service
	tokens   *auth.TokenManager
	notifier notify.Notifier
	logger   *log.Logger

	rateLimiter *rateLimiter
	metrics     metrics

	// Dashboard cache, keyed by owner and the owner's change version.
	// Every change event bumps the version, so an entry computed before
	// a write can never be served after it: the stale key is simply
	// never asked for again.
	dashCache  *lruCache[dashboardPayload]
	versionsMu sync.Mutex
	versions   map[string]uint64

	hub *melody.Melody
	sub notify.Subscription

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options carries the server's collaborators. AuthSvc and Tokens are nil
// when the backend runs unauthenticated.
type Options struct {
	Addr     string
	Ledger   *services.Ledger
	AuthSvc  *auth.Service
	Tokens   *auth.TokenManager
	Notifier notify.Notifier
	Logger   *log.Logger
}

// NewServer configures routes and the change-feed hub, returning a
// ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:           opts.Addr,
			Handler:        mux,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 1 << 16, // 64KB
		},
		ledger:           opts.Ledger,
		authSvc:          opts.AuthSvc,
		tokens:           opts.Tokens,
		notifier:         opts.Notifier,
		logger:           opts.Logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      newRateLimiter(),
		dashCache:        newLRUCache[dashboardPayload](100, 5*time.Minute),
		versions:         make(map[string]uint64),
		hub:              melody.New(),
		stopCacheCleanup: make(chan struct{}),
	}

	s.setupHub()
	go s.startCacheCleanup()

	// The wildcard subscription drives dashboard cache versioning.
	if opts.Notifier != nil {
		sub, err := opts.Notifier.Subscribe(context.Background(), "", s.onChange)
		if err != nil {
			return nil, fmt.Errorf("subscribe to change events: %w", err)
		}
		s.sub = sub
	}

	if s.authSvc != nil {
		mux.HandleFunc("POST /api/auth/signup", s.withSecurityHeaders(s.handleSignUp))
		mux.HandleFunc("POST /api/auth/login", s.withSecurityHeaders(s.handleLogin))
	}

	mux.HandleFunc("GET /api/services", s.withSecurityHeaders(s.handleListServices))
	mux.HandleFunc("POST /api/services", s.withSecurityHeaders(s.handleCreateService))
	mux.HandleFunc("PUT /api/services/{id}", s.withSecurityHeaders(s.handleUpdateService))
	mux.HandleFunc("DELETE /api/services/{id}", s.withSecurityHeaders(s.handleDeleteService))

	mux.HandleFunc("GET /api/withdrawals", s.withSecurityHeaders(s.handleListWithdrawals))
	mux.HandleFunc("POST /api/withdrawals", s.withSecurityHeaders(s.handleCreateWithdrawal))
	mux.HandleFunc("DELETE /api/withdrawals/{id}", s.withSecurityHeaders(s.handleDeleteWithdrawal))

	mux.HandleFunc("GET /api/dashboard", s.withSecurityHeaders(s.handleDashboard))

	mux.HandleFunc("GET /ws", s.handleWS)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	return s, nil
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.sub != nil {
			s.sub.Cancel()
		}
		s.hub.Close()
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.dashCache.CleanExpired(); cleaned > 0 {
				s.logger.Debug("cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// onChange invalidates the owner's dashboard by bumping the version.
// Websocket delivery is handled per connection by its auth.Session.
func (s *Server) onChange(ev notify.Event) {
	s.versionsMu.Lock()
	s.versions[ev.Owner]++
	s.versionsMu.Unlock()
}

func (s *Server) ownerVersion(owner string) uint64 {
	s.versionsMu.Lock()
	defer s.versionsMu.Unlock()
	return s.versions[owner]
}

func (s *Server) dashCacheKey(owner string) string {
	return owner + "@" + strconv.FormatUint(s.ownerVersion(owner), 10)
}

// owner resolves the acting owner for a request. Without auth the whole
// store belongs to the single local profile.
func (s *Server) owner(r *http.Request) (string, error) {
	if s.tokens == nil {
		return localOwner, nil
	}
	token := bearerToken(r)
	if token == "" {
		return "", auth.ErrInvalidToken
	}
	return s.tokens.Verify(token)
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.metrics.requestsTotal.Add(1)

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.logger.DebugContext(ctx, "request started",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			s.metrics.requestsFailed.Add(1)
			s.logger.WarnContext(ctx, "rate limit exceeded",
				log.FieldClientIP, clientIP, log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		if rw.statusCode >= 500 {
			s.metrics.requestsFailed.Add(1)
		}
		s.logger.InfoContext(ctx, "request completed",
			log.FieldRequestID, requestID,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "requests_total %d\n", s.metrics.requestsTotal.Load())
	fmt.Fprintf(w, "requests_failed %d\n", s.metrics.requestsFailed.Load())
	fmt.Fprintf(w, "ws_connections %d\n", s.metrics.wsConnections.Load())
	fmt.Fprintf(w, "ws_events_out %d\n", s.metrics.eventsOut.Load())
	fmt.Fprintf(w, "dashboard_cache_hits %d\n", s.metrics.cacheHits.Load())
	fmt.Fprintf(w, "dashboard_cache_misses %d\n", s.metrics.cacheMisses.Load())
}

// unauthorized reports whether err is an auth failure and, if so, writes
// the 401 response.
func (s *Server) unauthorized(w http.ResponseWriter, err error) bool {
	if errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, http.StatusUnauthorized, "missing or invalid token")
		return true
	}
	return false
}
