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

package debugging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"
)

// NewPprofHandler serves the runtime profiles under /debug/pprof/.
func NewPprofHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// RunPprof serves profiles on port until ctx is done. A port of 0 disables
// it. Useful for watching how much CPU the generator spends waiting out
// exhausted milliseconds.
func RunPprof(ctx context.Context, port int) {
	if port <= 0 {
		return
	}

	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           NewPprofHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting pprof server", slog.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Pprof server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down pprof server")
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("Error shutting down pprof server", slog.Any("error", err))
		}
	}()
}
