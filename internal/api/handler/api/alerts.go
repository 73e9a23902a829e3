package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/confluence/internal/api/response"
	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/storage/alerts"
)

const defaultAlertLimit = 50

// AlertsHandler serves the alert history.
type AlertsHandler struct {
	store alerts.Store
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(store alerts.Store) *AlertsHandler {
	return &AlertsHandler{store: store}
}

// List returns alerts from ?symbol=&interval=&bias=&from=&to=&limit=&offset=,
// newest first.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		response.Fail(w, err)
		return
	}

	items, err := h.store.List(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}
	total, err := h.store.Count(r.Context(), filter)
	if err != nil {
		response.Fail(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"alerts": items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get returns one alert by its {id} path value.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, a)
}

func parseAlertFilter(r *http.Request) (alerts.ListFilter, error) {
	q := r.URL.Query()
	f := alerts.ListFilter{
		Interval: q.Get("interval"),
		Limit:    defaultAlertLimit,
	}
	if s := q.Get("symbol"); s != "" {
		f.Symbol = collector.NormalizeSymbol(s, defaultQuote)
	}

	if b := q.Get("bias"); b != "" {
		switch bias := core.Bias(strings.ToUpper(b)); bias {
		case core.BiasLong, core.BiasShort, core.BiasNeutral:
			f.Bias = bias
		default:
			return f, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("unknown bias %q", b))
		}
	}

	var err error
	if f.From, err = optionalTime(q.Get("from")); err != nil {
		return f, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("from: %w", err))
	}
	if f.To, err = optionalTime(q.Get("to")); err != nil {
		return f, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("to: %w", err))
	}

	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, core.WrapError(core.ErrInvalidRequest,
				fmt.Errorf("%s must be a non-negative integer, got %q", name, raw))
		}
		*dst = n
	}
	return f, nil
}

func optionalTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return parseTime(s)
}
