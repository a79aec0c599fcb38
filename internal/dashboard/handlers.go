package dashboard

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"time"

	"crypto-tracker/internal/config"
	"crypto-tracker/internal/format"
	"crypto-tracker/internal/storage"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

type windowOption struct {
	Name     string
	Label    string
	Selected bool
}

type indexView struct {
	Title          string
	Subtitle       string
	Window         string
	WindowLabel    string
	Windows        []windowOption
	Latest         []LatestPrice
	Summaries      []SummaryResponse
	Updated        string
	RefreshSeconds int
	LiveSource     string
	Error          string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	window, span, err := s.windowParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	names := make([]string, 0, len(s.assets))
	for _, asset := range s.assets {
		names = append(names, format.Title(asset))
	}

	view := indexView{
		Title:          "Cryptocurrency Real-Time Dashboard",
		Subtitle:       "Tracking " + strings.Join(names, ", ") + " prices, volumes, and trends",
		Window:         window,
		WindowLabel:    windowTitle(window),
		RefreshSeconds: int(s.opts.RefreshInterval / time.Second),
		LiveSource:     s.opts.LiveSource,
	}
	for _, name := range config.DashboardWindows {
		view.Windows = append(view.Windows, windowOption{Name: name, Label: windowTitle(name), Selected: name == window})
	}

	latest, err := s.latest(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load latest prices")
		view.Error = "Stored data is unavailable right now."
	}
	view.Latest = latest.Prices
	view.Updated = latest.Updated.Format(storage.TimeLayout) + " UTC"

	if view.Error == "" {
		history, _, err := s.history(r.Context(), window, span, "")
		if err != nil {
			s.logger.Error().Err(err).Msg("load history")
			view.Error = "Stored data is unavailable right now."
		}
		view.Summaries = history.Summaries
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, view); err != nil {
		s.logger.Error().Err(err).Msg("render index")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	window, span, err := s.windowParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, groups, err := s.history(r.Context(), window, span, "")
	if err != nil {
		s.logger.Error().Err(err).Msg("load chart data")
		http.Error(w, "stored data unavailable", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := chartsPage(groups, window).Render(&buf); err != nil {
		s.logger.Error().Err(err).Msg("render charts")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.latest(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load latest prices")
		writeJSONError(w, http.StatusServiceUnavailable, "stored data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	window, span, err := s.windowParam(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	asset := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("asset")))

	resp, _, err := s.history(r.Context(), window, span, asset)
	if err != nil {
		s.logger.Error().Err(err).Msg("load history")
		writeJSONError(w, http.StatusServiceUnavailable, "stored data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
