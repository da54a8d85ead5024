package appMiddleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/easytrip-api/app/observability/metrics"
)

// ErrCacheMiss is returned by a Store for unknown keys.
var ErrCacheMiss = errors.New("cache miss")

const maxCachedBody = 2 << 20

// Store is the response cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// RedisStore keeps cached responses in Redis.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.SetEx(ctx, key, value, ttl).Err()
}

// DeletePrefix removes every key under prefix, scanning in batches.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := s.rdb.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.rdb.Unlink(ctx, batch...).Err()
	}
	return nil
}

// ResponseCache caches successful GET responses of the public API. Store
// failures never fail a request.
type ResponseCache struct {
	store  Store
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func NewResponseCache(store Store, prefix string, ttl time.Duration, logger *slog.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "easytrip:cache:"
	}
	return &ResponseCache{store: store, prefix: prefix, ttl: ttl, logger: logger}
}

type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// captureWriter forwards the response and keeps a copy of the body.
type captureWriter struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	overflow bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if !cw.overflow {
		if cw.buf.Len()+len(b) > maxCachedBody {
			cw.overflow = true
			cw.buf.Reset()
		} else {
			cw.buf.Write(b)
		}
	}
	return cw.ResponseWriter.Write(b)
}

func (c *ResponseCache) key(r *http.Request) string {
	sum := sha1.Sum([]byte(r.Method + ":" + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s%x", c.prefix, sum[:])
}

func (c *ResponseCache) count(ctx context.Context, result string) {
	metrics.Get().CacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Middleware serves GET requests from the cache and stores 200 responses.
func (c *ResponseCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := c.key(r)

		raw, err := c.store.Get(ctx, key)
		switch {
		case err == nil:
			var cached cachedResponse
			if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
				c.count(ctx, "hit")
				for k, vals := range cached.Header {
					if !replayable(k) {
						continue
					}
					w.Header()[http.CanonicalHeaderKey(k)] = append([]string(nil), vals...)
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}
			c.count(ctx, "corrupt")
		case errors.Is(err, ErrCacheMiss):
			c.count(ctx, "miss")
		default:
			c.count(ctx, "error")
			c.logger.WarnContext(ctx, "Response cache lookup failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		}

		// Headers already present belong to outer middleware (CORS, request id)
		// and are recomputed per request.
		outer := w.Header().Clone()
		w.Header().Set("X-Cache", "MISS")
		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		if cw.status != http.StatusOK || cw.overflow {
			return
		}
		header := http.Header{}
		for k, vals := range w.Header() {
			if _, set := outer[k]; set || !replayable(k) {
				continue
			}
			header[k] = append([]string(nil), vals...)
		}
		payload, err := json.Marshal(cachedResponse{Status: cw.status, Header: header, Body: cw.buf.Bytes()})
		if err != nil {
			return
		}
		if err = c.store.Set(context.WithoutCancel(ctx), key, payload, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "Failed to store cached response", slog.Any("error", err))
		}
	})
}

// replayable reports whether a stored header may be written back on a hit.
// Per-request headers never are: CORS answers depend on the caller's Origin.
func replayable(key string) bool {
	k := http.CanonicalHeaderKey(key)
	switch {
	case k == "Content-Length", k == "X-Cache", k == "Vary", k == "X-Request-Id":
		return false
	case strings.HasPrefix(k, "Access-Control-"):
		return false
	}
	return true
}

// Invalidate drops every cached response.
func (c *ResponseCache) Invalidate(ctx context.Context) error {
	if err := c.store.DeletePrefix(ctx, c.prefix); err != nil {
		return fmt.Errorf("invalidating response cache: %w", err)
	}
	return nil
}
