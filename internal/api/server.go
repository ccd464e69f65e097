// Package api exposes the dashboard engine over a JSON HTTP API. It is a
// thin presentational shell: every handler decodes, delegates to the
// orchestrator and encodes, holding no state of its own.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/regionweather/internal/dashboard"
	"github.com/lox/regionweather/internal/mapview"
	"github.com/lox/regionweather/internal/regions"
	"github.com/lox/regionweather/internal/sources"
)

type Server struct {
	dashboard *dashboard.Dashboard
	surface   *mapview.Memory
	port      string
}

func NewServer(d *dashboard.Dashboard, surface *mapview.Memory, port string) *Server {
	return &Server{dashboard: d, surface: surface, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/state", s.handleState)

	mux.HandleFunc("/api/window/range", s.handleWindowRange)
	mux.HandleFunc("/api/window/instant", s.handleWindowInstant)
	mux.HandleFunc("/api/window/play", s.handleWindowPlay)
	mux.HandleFunc("/api/window/pause", s.handleWindowPause)
	mux.HandleFunc("/api/window/skip", s.handleWindowSkip)

	mux.HandleFunc("/api/draw/start", s.handleDrawStart)
	mux.HandleFunc("/api/draw/point", s.handleDrawPoint)
	mux.HandleFunc("/api/draw/finish", s.handleDrawFinish)
	mux.HandleFunc("/api/draw/cancel", s.handleDrawCancel)

	mux.HandleFunc("/api/regions", s.handleRegions)
	mux.HandleFunc("/api/regions/click", s.handleRegionClick)
	mux.HandleFunc("/api/regions/rename", s.handleRegionRename)

	mux.HandleFunc("/api/sources", s.handleSources)
	mux.HandleFunc("/api/sources/activate", s.handleSourceActivate)
	mux.HandleFunc("/api/sources/deactivate", s.handleSourceDeactivate)
	mux.HandleFunc("/api/sources/threshold", s.handleSourceThreshold)

	mux.HandleFunc("/api/export", s.handleExport)
	mux.HandleFunc("/api/import", s.handleImport)
	mux.HandleFunc("/api/cache/clear", s.handleCacheClear)

	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

// writeError maps domain validation and decode errors to 400 and everything
// else to 500, with a uniform {"error": ...} body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr),
		errors.As(err, &typeErr),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, regions.ErrDrawingActive),
		errors.Is(err, regions.ErrNotDrawing),
		errors.Is(err, regions.ErrTooFewPoints),
		errors.Is(err, sources.ErrLastSource),
		errors.Is(err, sources.ErrUnknownID),
		errors.Is(err, sources.ErrBadIndex),
		errors.Is(err, sources.ErrBadThreshold),
		errors.Is(err, dashboard.ErrInvalidDocument):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// requireMethod rejects anything but the given method with a 405.
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
