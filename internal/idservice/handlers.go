// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package idservice

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cardinalhq/flakeid/internal/idgen"
	"github.com/cardinalhq/flakeid/internal/logctx"
)

const (
	requestIDHeader = "X-Request-Id"

	// maxRequestIDLen bounds caller-supplied request ids. Longer or oddly
	// formed ones are replaced with a fresh ULID.
	maxRequestIDLen = 64
)

type idsResponse struct {
	IDs []string `json:"ids"`
}

type decodeResponse struct {
	ID     string `json:"id"`
	Base36 string `json:"base36"`
	Time   string `json:"time"`
	idgen.Parts
}

type shardResponse struct {
	Table string `json:"table"`
	Index int    `json:"index"`
}

func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ids", s.instrument("ids", s.handleGenerate))
	mux.HandleFunc("GET /api/v1/ids/{id}", s.instrument("decode", s.handleDecode))
	mux.HandleFunc("GET /api/v1/shards/{base}", s.instrument("shard", s.handleShard))
	return mux
}

// instrument attaches a request id, a request-scoped logger and a span, and
// records the request duration.
func (s *Service) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		reqID := r.Header.Get(requestIDHeader)
		if !validRequestID(reqID) {
			reqID = s.requestIDs.Make(start)
		}
		w.Header().Set(requestIDHeader, reqID)

		ctx, span := s.tracer.Start(r.Context(), "flakeid.api."+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("request_id", reqID)))
		defer span.End()

		ctx = logctx.WithLogger(ctx, slog.Default().With(slog.String("route", route)))
		ctx = logctx.WithRequestID(ctx, reqID)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		if sw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.status))
		}
		s.metrics.recordRequest(ctx, route, sw.status, time.Since(start))
	}
}

// validRequestID accepts short ids made of letters, digits and -._: ULIDs,
// UUIDs and most tracing ids.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, c := range []byte(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Service) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := logctx.FromContext(r.Context())

	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxBatch {
			http.Error(w, "count must be an integer between 1 and "+strconv.Itoa(MaxBatch), http.StatusBadRequest)
			return
		}
		count = n
	}

	base36, ok := parseFormat(r)
	if !ok {
		http.Error(w, "format must be decimal or base36", http.StatusBadRequest)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("count", count))

	ids, err := s.Generate(r.Context(), count)
	if err != nil {
		span.RecordError(err)
		var rbErr *idgen.ClockRollbackError
		if errors.As(err, &rbErr) {
			span.SetAttributes(attribute.Int64("rollback_ms", rbErr.Rollback.Milliseconds()))
			logger.Warn("Clock moved backwards, refusing to issue ids",
				slog.Duration("rollback", rbErr.Rollback))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(rbErr.Rollback)))
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		logger.Error("Failed to generate ids", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := idsResponse{IDs: make([]string, len(ids))}
	for i, id := range ids {
		if base36 {
			resp.IDs[i] = id.Base36()
		} else {
			resp.IDs[i] = id.String()
		}
	}
	logger.Debug("Issued ids", slog.Int("count", len(ids)))
	writeJSON(w, resp)
}

func (s *Service) handleDecode(w http.ResponseWriter, r *http.Request) {
	base36, ok := parseFormat(r)
	if !ok {
		http.Error(w, "format must be decimal or base36", http.StatusBadRequest)
		return
	}

	raw := r.PathValue("id")
	var (
		id  idgen.ID
		err error
	)
	if base36 {
		id, err = idgen.ParseBase36(raw)
	} else {
		id, err = idgen.ParseID(raw)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, decodeResponse{
		ID:     id.String(),
		Base36: id.Base36(),
		Time:   id.Time().Format(time.RFC3339Nano),
		Parts:  id.Decompose(),
	})
}

func (s *Service) handleShard(w http.ResponseWriter, r *http.Request) {
	base := r.PathValue("base")
	q := r.URL.Query()
	key, hasKey := q["key"]
	rawID, hasID := q["id"]

	switch {
	case hasKey == hasID:
		http.Error(w, "exactly one of key or id is required", http.StatusBadRequest)
	case hasKey:
		n := s.sharder.Index(key[0])
		writeJSON(w, shardResponse{Table: s.sharder.Table(base, key[0]), Index: n})
	default:
		id, err := idgen.ParseID(rawID[0])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, shardResponse{Table: s.sharder.TableForID(base, id), Index: s.sharder.IndexForID(id)})
	}
}

// parseFormat reports whether base36 was requested.
func parseFormat(r *http.Request) (base36 bool, ok bool) {
	switch r.URL.Query().Get("format") {
	case "", "decimal":
		return false, true
	case "base36":
		return true, true
	default:
		return false, false
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", slog.Any("error", err))
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
