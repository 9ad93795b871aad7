package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	idempotencyHit    = "X-Idempotency-Hit"

	processingMarker = "PROCESSING"
	defaultLockTTL   = 30 * time.Second
	responseTTL      = 24 * time.Hour
)

type idempotencyConfig struct {
	lockTTL time.Duration
}

// IdempotencyOption configures the Idempotency middleware.
type IdempotencyOption func(*idempotencyConfig)

// WithLockTTL sets how long an in-flight key stays locked between refreshes.
// It should exceed the slowest upstream call a handler makes.
func WithLockTTL(d time.Duration) IdempotencyOption {
	return func(c *idempotencyConfig) {
		if d >= time.Millisecond {
			c.lockTTL = d
		}
	}
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// Idempotency replays the first response for a repeated Idempotency-Key.
// While the first request is still running, repeats get 409. Server errors
// are not stored so the client can retry with the same key. The lock is
// extended while the handler runs, so a slow handler never loses it.
func Idempotency(redisClient redis.Cmdable, opts ...IdempotencyOption) func(http.Handler) http.Handler {
	cfg := idempotencyConfig{lockTTL: defaultLockTTL}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to state-changing methods
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			idemKey := fmt.Sprintf("idempotency:%s:%s:%s", r.Method, r.URL.Path, key)
			ctx := r.Context()

			acquired, err := redisClient.SetNX(ctx, idemKey, processingMarker, cfg.lockTTL).Result()
			if err != nil {
				slog.WarnContext(ctx, "idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				replay(ctx, w, redisClient, idemKey)
				return
			}

			var body bytes.Buffer
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)

			stopRefresh := keepLocked(ctx, redisClient, idemKey, cfg.lockTTL)
			defer stopRefresh()
			next.ServeHTTP(ww, r)
			stopRefresh()

			// the request context may already be cancelled
			storeCtx := context.WithoutCancel(ctx)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				redisClient.Del(storeCtx, idemKey)
				return
			}

			data, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.Bytes(),
			})
			if err == nil {
				err = redisClient.Set(storeCtx, idemKey, data, responseTTL).Err()
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to store idempotent response", "key", key, "error", err)
			}
		})
	}
}

// keepLocked re-arms the PROCESSING marker every ttl/3 until stop is called.
// SET XX never recreates a key that was already released.
func keepLocked(ctx context.Context, redisClient redis.Cmdable, idemKey string, ttl time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := redisClient.SetXX(ctx, idemKey, processingMarker, ttl).Err()
				if err != nil && ctx.Err() == nil {
					slog.WarnContext(ctx, "failed to extend idempotency lock", "error", err)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, redisClient redis.Cmdable, idemKey string) {
	val, err := redisClient.Get(ctx, idemKey).Bytes()
	if errors.Is(err, redis.Nil) || (err == nil && string(val) == processingMarker) {
		writeError(w, http.StatusConflict, "concurrent_request", "a request with this idempotency key is in progress")
		return
	}
	if err != nil {
		slog.WarnContext(ctx, "idempotency store unavailable", "error", err)
		writeError(w, http.StatusConflict, "concurrent_request", "a request with this idempotency key is in progress")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(val, &stored); err != nil {
		writeError(w, http.StatusConflict, "concurrent_request", "a request with this idempotency key is in progress")
		return
	}

	w.Header().Set(idempotencyHit, "true")
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}
