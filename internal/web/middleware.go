package web

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// loggingMiddleware logs HTTP requests and responses
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.WithRequestID(requestID).Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status_code", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.Int("response_size", rw.size),
		)
	})
}

// rateLimitMiddleware applies a per-client token bucket to the API.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	cfg := s.config.Server.RateLimit
	if !cfg.Enabled {
		return next
	}

	limiters := &clientLimiters{
		limit:    rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:    cfg.Burst,
		byClient: make(map[string]*clientLimiter),
	}
	go limiters.cleanupLoop()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientAddr(r)
		if !limiters.get(ip).Allow() {
			s.logger.Warn("Rate limit exceeded", zap.String("client_ip", ip))
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

type clientLimiters struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	byClient map[string]*clientLimiter
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.byClient[ip]
	if !ok {
		l = &clientLimiter{Limiter: rate.NewLimiter(c.limit, c.burst)}
		c.byClient[ip] = l
	}
	l.lastSeen = time.Now()
	return l.Limiter
}

// cleanupLoop drops limiters for clients idle longer than an hour.
func (c *clientLimiters) cleanupLoop() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-time.Hour)
		c.mu.Lock()
		for ip, l := range c.byClient {
			if l.lastSeen.Before(cutoff) {
				delete(c.byClient, ip)
			}
		}
		c.mu.Unlock()
	}
}

// clientAddr extracts the client address for rate limiting and logging.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture response data
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
