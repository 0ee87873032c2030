package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/vbonduro/donormap/internal/directory"
	"github.com/vbonduro/donormap/internal/domain"
	"github.com/vbonduro/donormap/internal/geo"
)

const donorsUpdatedEvent = "donors-updated"

type sidebarData struct {
	directory.Snapshot
	Legend []directory.LegendEntry
}

type markersResponse struct {
	Center  domain.Position    `json:"center"`
	Markers []directory.Marker `json:"markers"`
	Skipped int                `json:"skipped"`
	Stats   directory.Stats    `json:"stats"`
	Loading bool               `json:"loading"`
}

// view resolves the caller's view, creating it on first use.
func (s *Server) view(w http.ResponseWriter, r *http.Request) (*directory.View, bool) {
	return s.views.Acquire(s.viewID(w, r))
}

// wait blocks until done closes or the request goes away. A request that
// gives up does not cancel the fetch; the view still applies its result.
func wait(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	v, created := s.view(w, r)
	if !created {
		// A page load re-reads the directory with the committed filters.
		v.Fetch()
	}
	snap := v.Snapshot()

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{
			"Sidebar":   sidebarData{Snapshot: snap, Legend: directory.Legend()},
			"Center":    snap.Center,
			"ActiveNav": "map",
		},
		"base.html", "pages/map.html", "partials/sidebar.html",
	); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	v, _ := s.view(w, r)
	s.renderSidebar(w, v)
}

func (s *Server) renderSidebar(w http.ResponseWriter, v *directory.View) {
	data := sidebarData{Snapshot: v.Snapshot(), Legend: directory.Legend()}
	if err := s.renderPartial(w, "partials/sidebar.html", data); err != nil {
		s.logger.Error("render partial error", "error", err)
	}
}

func (s *Server) handleSetFilters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	v, _ := s.view(w, r)
	for field, values := range r.PostForm {
		if !v.SetFilter(field, values[0]) {
			s.logger.Debug("ignoring unknown filter dimension", "dimension", field)
		}
	}
	s.renderSidebar(w, v)
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	v, _ := s.view(w, r)
	wait(r.Context(), v.ApplyFilters())
	w.Header().Set("HX-Trigger", donorsUpdatedEvent)
	s.renderSidebar(w, v)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	v, _ := s.view(w, r)
	wait(r.Context(), v.ClearFilters())
	w.Header().Set("HX-Trigger", donorsUpdatedEvent)
	s.renderSidebar(w, v)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	v, _ := s.view(w, r)
	snap := v.Snapshot()
	p := directory.Project(snap.Donors)
	s.metrics.AddMarkersSkipped(p.Skipped)

	writeJSON(w, markersResponse{
		Center:  snap.Center,
		Markers: p.Markers,
		Skipped: p.Skipped,
		Stats:   snap.Stats,
		Loading: snap.Loading,
	})
}

// handleLocate re-centers the map from browser coordinates when the form
// carries lat and lng, otherwise from the client's IP address.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	v, _ := s.view(w, r)

	hint, ok := parseHint(r.FormValue("lat"), r.FormValue("lng"))
	providers := []geo.Provider{geo.Hint(hint, ok)}
	if s.ipLookup != nil {
		providers = append(providers, s.ipLookup.For(r.RemoteAddr))
	}
	wait(r.Context(), v.Locate(geo.First(providers...)))

	writeJSON(w, map[string]domain.Position{"center": v.Snapshot().Center})
}

func parseHint(latStr, lngStr string) (domain.Position, bool) {
	latStr, lngStr = strings.TrimSpace(latStr), strings.TrimSpace(lngStr)
	if latStr == "" || lngStr == "" {
		return domain.Position{}, false
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return domain.Position{}, false
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return domain.Position{}, false
	}
	return domain.Position{Latitude: lat, Longitude: lng}, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(v)
}
