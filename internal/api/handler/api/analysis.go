// Package api implements the JSON API handlers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/confluence/internal/api/response"
	"github.com/newthinker/confluence/internal/app"
	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/signal"
)

const defaultQuote = "USDT"

// Analyzer scores the latest window of a symbol
type Analyzer interface {
	Analyze(ctx context.Context, req app.Request) (*app.Report, error)
}

// Profiles resolves scoring profiles by name
type Profiles interface {
	Profile(name string) (signal.ScoringProfile, error)
	ProfileNames() []string
}

// Monitor exposes the running bias monitor
type Monitor interface {
	Latest() *app.Report
	Stats() map[string]any
}

// Defaults fill query parameters the caller omits
type Defaults struct {
	Symbol   string
	Interval string
}

// AnalysisHandler handles on-demand analysis requests.
type AnalysisHandler struct {
	analyzer Analyzer
	profiles Profiles
	monitor  Monitor
	defaults Defaults
}

// NewAnalysisHandler creates a new analysis handler. monitor may be nil.
func NewAnalysisHandler(analyzer Analyzer, profiles Profiles, monitor Monitor, defaults Defaults) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		profiles: profiles,
		monitor:  monitor,
		defaults: defaults,
	}
}

// Analyze runs one analysis from ?symbol=&interval=&profile=&bars=
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	req, err := h.parse(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, report)
}

func (h *AnalysisHandler) parse(r *http.Request) (app.Request, error) {
	q := r.URL.Query()

	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = h.defaults.Symbol
	}
	symbol = collector.NormalizeSymbol(symbol, defaultQuote)
	if err := collector.ValidateSymbol(symbol); err != nil {
		return app.Request{}, core.WrapError(core.ErrInvalidRequest, err)
	}

	interval := q.Get("interval")
	if interval == "" {
		interval = h.defaults.Interval
	}
	if _, err := collector.ParseInterval(interval); err != nil {
		return app.Request{}, core.WrapError(core.ErrInvalidRequest, err)
	}

	profile, err := h.profiles.Profile(q.Get("profile"))
	if err != nil {
		return app.Request{}, err
	}

	req := app.Request{Symbol: symbol, Interval: interval, Profile: profile}
	if raw := q.Get("bars"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return app.Request{}, core.WrapError(core.ErrInvalidRequest,
				fmt.Errorf("bars must be a positive integer, got %q", raw))
		}
		req.Bars = n
	}
	return req, nil
}

// Latest returns the monitor's most recent report and its statistics
func (h *AnalysisHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		response.Fail(w, core.WrapError(core.ErrNoData, fmt.Errorf("monitor not running")))
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"report": h.monitor.Latest(),
		"stats":  h.monitor.Stats(),
	})
}

// ListProfiles returns every resolvable profile
func (h *AnalysisHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	names := h.profiles.ProfileNames()
	out := make([]signal.ScoringProfile, 0, len(names))
	for _, name := range names {
		p, err := h.profiles.Profile(name)
		if err != nil {
			response.Fail(w, err)
			return
		}
		out = append(out, p)
	}
	response.JSON(w, http.StatusOK, out)
}

// GetProfile returns one profile by its {name} path value
func (h *AnalysisHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.Profile(r.PathValue("name"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}
