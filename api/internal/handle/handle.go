package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"drawing-ocr/api/internal/config"
	"drawing-ocr/api/internal/extract"
	"drawing-ocr/api/internal/logger"
	"drawing-ocr/api/internal/ocr"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/region"
	"drawing-ocr/api/internal/source"
	"drawing-ocr/api/internal/store"
	"drawing-ocr/api/internal/tiling"
)

var Logger = logger.GetLogger("handle")

const (
	defaultDeadline = 180 * time.Second
	maxUpload       = 64 << 20
)

type Handle struct {
	engs     *ocr.Engines
	profiles config.Profiles
	pipe     *extract.Pipeline
	cache    *extract.ResultCache
	uploads  string

	// хранилища; без БД работают только /api/document-ocr ручки
	Projects ProjectStore
	Files    FileStore
	Regions  RegionStore
	Tables   TableStore
	Results  ResultStore
}

func New(engs *ocr.Engines, profiles config.Profiles, pipe *extract.Pipeline, cache *extract.ResultCache, uploads string) *Handle {
	return &Handle{
		engs:     engs,
		profiles: profiles,
		pipe:     pipe,
		cache:    cache,
		uploads:  uploads,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= 500 {
		Logger.Error("request failed", "status", code, "err", err)
	}
	writeJSON(w, code, errorBody{Error: err.Error(), Retryable: ocr.Retryable(err)})
}

// statusFor maps pipeline errors onto HTTP statuses.
func statusFor(err error) int {
	var be *region.BoundsError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ocr.ErrTransient), errors.Is(err, ocr.ErrInvalidCredentials):
		return http.StatusBadGateway
	case errors.Is(err, reconcile.ErrCellOutOfBounds), errors.Is(err, reconcile.ErrCellOverlap):
		return http.StatusUnprocessableEntity
	case errors.As(err, &be),
		errors.Is(err, region.ErrTooManyRegions),
		errors.Is(err, region.ErrUnknownScale),
		errors.Is(err, region.ErrEmptyBatch),
		errors.Is(err, source.ErrUnsupported),
		errors.Is(err, source.ErrDecode),
		errors.Is(err, source.ErrNoPages),
		errors.Is(err, tiling.ErrEmptyImage),
		errors.Is(err, tiling.ErrInvalidPolicy),
		errors.Is(err, ocr.ErrUnknownEngine),
		errors.Is(err, config.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// withDeadline honours X-Request-Timeout (or ?timeoutSec=) in seconds.
func withDeadline(r *http.Request) (context.Context, context.CancelFunc) {
	deadline := defaultDeadline
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

func pathID(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return v, err == nil && v > 0
}

// engine picks ?engine= or the default one.
func (h *Handle) engine(r *http.Request) (ocr.Engine, error) {
	return h.engs.GetEngine(r.URL.Query().Get("engine"))
}
