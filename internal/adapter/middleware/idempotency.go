package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// teeWriter copies the response body so it can be stored for replay.
type teeWriter struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (w *teeWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a repeated workflow command.
// Entries are keyed by method, route, actor and Idempotency-Key, so it must
// run after ActorMiddleware. 5xx responses are dropped so the client can
// retry with the same key.
func Idempotency(rdb redis.Cmdable, ttl time.Duration, log *slog.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}
	store := replayStore{rdb: rdb, ttl: ttl}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			switch req.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			actor, ok := ActorFrom(c)
			if !ok {
				return jsonError(c, http.StatusUnauthorized, "missing actor")
			}
			requestID, err := readRequestID(req.Header, time.Now().UTC())
			if err != nil {
				return jsonError(c, http.StatusBadRequest, err.Error())
			}
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return jsonError(c, http.StatusBadRequest, "unreadable request body")
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			sum := bodyHash(body)
			key := replayKey(req.Method, c.Path(), actor.ID, requestID)

			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()
			reserved, err := store.reserve(ctx, key, sum)
			if err != nil {
				log.ErrorContext(ctx, "idempotency store unavailable", "key", key, "error", err)
				return jsonError(c, http.StatusServiceUnavailable, "idempotency store unavailable")
			}
			if !reserved {
				return replay(ctx, c, store, key, sum, log)
			}
			return execute(c, next, store, key, sum, log)
		}
	}
}

// replay answers a command whose key is already taken.
func replay(ctx context.Context, c echo.Context, store replayStore, key, sum string, log *slog.Logger) error {
	prev, err := store.load(ctx, key)
	if err != nil {
		log.WarnContext(ctx, "idempotency entry unreadable", "key", key, "error", err)
	}
	switch {
	case prev.BodyHash != "" && prev.BodyHash != sum:
		return jsonError(c, http.StatusConflict, keyHeader+" reused with different body")
	case prev.Pending || prev.Status == 0:
		return jsonError(c, http.StatusConflict, "request is already in progress")
	}
	return c.Blob(prev.Status, echo.MIMEApplicationJSON, prev.Body)
}

// execute runs the handler on a freshly reserved key and stores its response.
func execute(c echo.Context, next echo.HandlerFunc, store replayStore, key, sum string, log *slog.Logger) error {
	res := c.Response()
	tee := &teeWriter{ResponseWriter: res.Writer}
	res.Writer = tee
	if err := next(c); err != nil {
		c.Error(err)
	}

	// the request context may already be gone
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if res.Status >= http.StatusInternalServerError {
		if err := store.release(ctx, key); err != nil {
			log.WarnContext(ctx, "idempotency release failed", "key", key, "error", err)
		}
		return nil
	}
	entry := replayEntry{Status: res.Status, Body: tee.body.Bytes(), BodyHash: sum}
	if err := store.complete(ctx, key, entry); err != nil {
		log.WarnContext(ctx, "idempotency save failed", "key", key, "error", err)
	}
	return nil
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
