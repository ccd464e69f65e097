package api

import (
	"net/http"

	"github.com/lox/regionweather/internal/dashboard"
	"github.com/lox/regionweather/internal/models"
	"github.com/lox/regionweather/internal/sources"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stateResponse struct {
	Polygons      []models.Polygon     `json:"polygons"`
	Selected      string               `json:"selected,omitempty"`
	Drawing       bool                 `json:"drawing"`
	PendingPoints []models.LatLng      `json:"pendingPoints,omitempty"`
	Window        models.TimeWindow    `json:"window"`
	Playing       bool                 `json:"playing"`
	ActiveSources []models.DataSource  `json:"activeSources"`
	Catalog       []models.DataSource  `json:"catalog"`
	Cache         dashboard.CacheStats `json:"cache"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	d := s.dashboard
	writeJSON(w, http.StatusOK, stateResponse{
		Polygons:      d.Regions().Polygons(),
		Selected:      d.Regions().Selected(),
		Drawing:       d.Regions().Drawing(),
		PendingPoints: d.Regions().PendingPoints(),
		Window:        d.Window().Window(),
		Playing:       d.Window().Playing(),
		ActiveSources: d.Sources().Active(),
		Catalog:       sources.Catalog(),
		Cache:         d.CacheStats(),
	})
}

func (s *Server) handleWindowRange(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Start int `json:"start"`
		End   int `json:"end"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dashboard.Window().SetRange(req.Start, req.End)
	writeJSON(w, http.StatusOK, s.dashboard.Window().Window())
}

func (s *Server) handleWindowInstant(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Hour int `json:"hour"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dashboard.Window().SetInstant(req.Hour)
	writeJSON(w, http.StatusOK, s.dashboard.Window().Window())
}

func (s *Server) handleWindowPlay(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.dashboard.Window().Play()
	writeJSON(w, http.StatusOK, map[string]bool{"playing": true})
}

func (s *Server) handleWindowPause(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.dashboard.Window().Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"playing": false})
}

func (s *Server) handleWindowSkip(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Direction string `json:"direction"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	switch req.Direction {
	case "back":
		s.dashboard.Window().SkipBack()
	case "forward":
		s.dashboard.Window().SkipForward()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "direction must be back or forward"})
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Window().Window())
}

func (s *Server) handleDrawStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.dashboard.Regions().StartDrawing(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"drawing": true})
}

func (s *Server) handleDrawPoint(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dashboard.Regions().AddPoint(req.Lon, req.Lat); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"points": len(s.dashboard.Regions().PendingPoints())})
}

func (s *Server) handleDrawFinish(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	polygon, err := s.dashboard.FinishDrawing(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, polygon)
}

func (s *Server) handleDrawCancel(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.dashboard.Regions().CancelDrawing()
	writeJSON(w, http.StatusOK, map[string]bool{"drawing": false})
}

// handleRegions lists on GET and deletes by ?id= on DELETE.
func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.dashboard.Regions().Polygons())
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
			return
		}
		s.dashboard.Regions().Delete(id)
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRegionClick feeds a map click through the surface, which dispatches
// to selection or drawing exactly as a rendered map would.
func (s *Server) handleRegionClick(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.surface.Click(req.Lon, req.Lat)
	writeJSON(w, http.StatusOK, map[string]string{"selected": s.dashboard.Regions().Selected()})
}

func (s *Server) handleRegionRename(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.dashboard.Regions().Rename(req.ID, req.Name)
	writeJSON(w, http.StatusOK, map[string]bool{"renamed": true})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog": sources.Catalog(),
		"active":  s.dashboard.Sources().Active(),
	})
}

func (s *Server) handleSourceActivate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dashboard.Sources().Activate(req.ID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Sources().Active())
}

func (s *Server) handleSourceDeactivate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dashboard.Sources().Deactivate(req.Index); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Sources().Active())
}

func (s *Server) handleSourceThreshold(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Index int    `json:"index"`
		Level int    `json:"level"`
		Field string `json:"field"`
		Value string `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dashboard.Sources().UpdateThreshold(req.Index, req.Level, req.Field, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Sources().Active())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.dashboard.Export())
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var doc models.ExportDocument
	if err := decode(r, &doc); err != nil {
		writeError(w, err)
		return
	}
	if err := s.dashboard.Import(doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"polygons": len(s.dashboard.Regions().Polygons())})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.dashboard.ClearCache()
	writeJSON(w, http.StatusOK, s.dashboard.CacheStats())
}
