// Package server implements the cache API over a store.Store.
//
// Routes:
//
//	GET    /zato/cache/{key}  200 {"value": v} or 404 {}
//	POST   /zato/cache/{key}  200 {} or {"prev_value": p}
//	DELETE /zato/cache/{key}  200 {} or {"prev_value": p}, 404 {} when missing
//
// Request bodies are JSON objects with the optional fields value,
// return_prev and expiry (seconds). When a password is configured every
// cache request must authenticate as pub.zato.cache with HTTP Basic Auth.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
	"github.com/Sternrassler/zato-cache-client/pkg/logging"
	"github.com/Sternrassler/zato-cache-client/pkg/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Config holds the handler configuration.
type Config struct {
	// Password for cacheapi.APIUsername. Empty disables authentication.
	Password string

	// RequestTimeout bounds store operations. Zero means no timeout.
	RequestTimeout time.Duration

	// Logger overrides the global logger.
	Logger *zerolog.Logger
}

// DefaultConfig returns a configuration without authentication.
func DefaultConfig() Config {
	return Config{RequestTimeout: 10 * time.Second}
}

// Handler serves the cache API.
type Handler struct {
	store  store.Store
	cfg    Config
	logger zerolog.Logger
}

// request is the JSON body of a cache request.
type request struct {
	Value      json.RawMessage `json:"value"`
	ReturnPrev bool            `json:"return_prev"`
	Expiry     float64         `json:"expiry"`
}

// New creates a handler serving s.
func New(s store.Store, cfg Config) *Handler {
	if s == nil {
		panic("store cannot be nil")
	}

	logger := logging.NewLogger(logging.ComponentServer)
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", logging.ComponentServer).Logger()
	}

	return &Handler{store: s, cfg: cfg, logger: logger}
}

// ServeHTTP implements http.Handler for paths below cacheapi.PathPrefix.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		requestsTotal.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		requestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	}()

	if !h.authorized(r) {
		rec.Header().Set("WWW-Authenticate", `Basic realm="zato cache"`)
		writeJSON(rec, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
		return
	}

	key := strings.TrimPrefix(r.URL.Path, cacheapi.PathPrefix)
	if key == "" || key == r.URL.Path {
		writeJSON(rec, http.StatusNotFound, map[string]any{"error": "missing key"})
		return
	}

	body, err := decodeRequest(r)
	if err != nil {
		writeJSON(rec, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	ctx := r.Context()
	if h.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RequestTimeout)
		defer cancel()
	}

	h.logger.Debug().
		Str("method", r.Method).
		Str("key", key).
		Msg("Cache request")

	switch r.Method {
	case http.MethodGet:
		h.get(ctx, rec, key)
	case http.MethodPost:
		h.set(ctx, rec, key, body)
	case http.MethodDelete:
		h.delete(ctx, rec, key, body)
	default:
		rec.Header().Set("Allow", "GET, POST, DELETE")
		writeJSON(rec, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func (h *Handler) get(ctx context.Context, w http.ResponseWriter, key string) {
	entry, err := h.store.Get(ctx, key)
	if err != nil {
		h.storeError(w, "get", key, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": entry.Value})
}

func (h *Handler) set(ctx context.Context, w http.ResponseWriter, key string, body request) {
	value := body.Value
	if value == nil {
		value = json.RawMessage("null")
	}

	var ttl time.Duration
	if body.Expiry > 0 {
		ttl = time.Duration(body.Expiry * float64(time.Second))
	}

	prev, hadPrev, err := h.store.Set(ctx, key, value, ttl)
	if err != nil {
		h.storeError(w, "set", key, err)
		return
	}

	resp := map[string]any{}
	if body.ReturnPrev && hadPrev {
		resp["prev_value"] = prev.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(ctx context.Context, w http.ResponseWriter, key string, body request) {
	prev, err := h.store.Delete(ctx, key)
	if err != nil {
		h.storeError(w, "delete", key, err)
		return
	}

	resp := map[string]any{}
	if body.ReturnPrev {
		resp["prev_value"] = prev.Value
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) storeError(w http.ResponseWriter, op, key string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{})
		return
	}

	h.logger.Warn().
		Err(err).
		Str("operation", op).
		Str("key", key).
		Msg("Store operation failed")
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "store failure"})
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.cfg.Password == "" {
		return true
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cacheapi.APIUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(h.cfg.Password)) == 1
	return userOK && passOK
}

// decodeRequest reads an optional JSON object body.
func decodeRequest(r *http.Request) (request, error) {
	var body request

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return body, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return body, nil
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return body, err
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
