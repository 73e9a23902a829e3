package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/confluence/internal/api/job"
	"github.com/newthinker/confluence/internal/api/response"
	"github.com/newthinker/confluence/internal/backtest"
	"github.com/newthinker/confluence/internal/collector"
	"github.com/newthinker/confluence/internal/core"
	"github.com/newthinker/confluence/internal/metrics"
)

const (
	backtestTimeout = 5 * time.Minute
	jobTypeBacktest = "backtest"
)

// BacktestRequest is the request body for starting a backtest. Start and End
// accept "2006-01-02" or RFC3339; without Start the run covers Days before End.
type BacktestRequest struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Profile  string           `json:"profile"`
	Start    string           `json:"start,omitempty"`
	End      string           `json:"end,omitempty"`
	Days     int              `json:"days,omitempty"`
	Config   *backtest.Config `json:"config,omitempty"`
}

// Runner executes one backtest
type Runner interface {
	Run(ctx context.Context, req backtest.Request) (*backtest.Result, error)
}

// BacktestDefaults fill fields the request omits
type BacktestDefaults struct {
	Interval string
	Days     int
	Config   backtest.Config
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobs     *job.Store
	runner   Runner
	profiles Profiles
	defaults BacktestDefaults
	metrics  *metrics.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	jobs *job.Store,
	runner Runner,
	profiles Profiles,
	defaults BacktestDefaults,
	reg *metrics.Registry,
	logger *zap.Logger,
) *BacktestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Days <= 0 {
		defaults.Days = 30
	}
	return &BacktestHandler{
		jobs:     jobs,
		runner:   runner,
		profiles: profiles,
		defaults: defaults,
		metrics:  reg,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates the request and starts a backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Fail(w, core.WrapError(core.ErrInvalidRequest, err))
		return
	}

	req, err := h.request(body)
	if err != nil {
		response.Fail(w, err)
		return
	}

	j := h.jobs.Create(jobTypeBacktest)
	h.metrics.SetJobsActive(jobTypeBacktest, h.jobs.Active(jobTypeBacktest))

	go h.run(j.ID, req)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

func (h *BacktestHandler) request(body BacktestRequest) (backtest.Request, error) {
	symbol := collector.NormalizeSymbol(body.Symbol, defaultQuote)
	if err := collector.ValidateSymbol(symbol); err != nil {
		return backtest.Request{}, core.WrapError(core.ErrInvalidRequest, err)
	}

	interval := body.Interval
	if interval == "" {
		interval = h.defaults.Interval
	}
	if _, err := collector.ParseInterval(interval); err != nil {
		return backtest.Request{}, core.WrapError(core.ErrInvalidRequest, err)
	}

	profile, err := h.profiles.Profile(body.Profile)
	if err != nil {
		return backtest.Request{}, err
	}

	end := h.now().UTC()
	if body.End != "" {
		if end, err = parseTime(body.End); err != nil {
			return backtest.Request{}, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("end: %w", err))
		}
	}
	days := body.Days
	if days <= 0 {
		days = h.defaults.Days
	}
	start := end.AddDate(0, 0, -days)
	if body.Start != "" {
		if start, err = parseTime(body.Start); err != nil {
			return backtest.Request{}, core.WrapError(core.ErrInvalidRequest, fmt.Errorf("start: %w", err))
		}
	}
	if !start.Before(end) {
		return backtest.Request{}, core.WrapError(core.ErrInvalidRequest,
			fmt.Errorf("start %s not before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}

	cfg := h.defaults.Config
	if body.Config != nil {
		cfg = *body.Config
	}

	return backtest.Request{
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		End:      end,
		Profile:  profile,
		Config:   cfg,
	}, nil
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// run executes the backtest and updates job status.
func (h *BacktestHandler) run(jobID string, req backtest.Request) {
	_ = h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	started := time.Now()
	result, err := h.runner.Run(ctx, req)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		h.metrics.RecordBacktest("failed", elapsed)
		h.logger.Warn("backtest job failed",
			zap.String("job_id", jobID),
			zap.String("symbol", req.Symbol),
			zap.Error(err),
		)
		_ = h.jobs.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		h.metrics.SetJobsActive(jobTypeBacktest, h.jobs.Active(jobTypeBacktest))
		return
	}

	h.metrics.RecordBacktest("complete", elapsed)
	reasons := make(map[string]int, len(result.Stats.ExitReasons))
	for reason, n := range result.Stats.ExitReasons {
		reasons[string(reason)] = n
	}
	h.metrics.RecordTrades(reasons)

	_ = h.jobs.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
	h.metrics.SetJobsActive(jobTypeBacktest, h.jobs.Active(jobTypeBacktest))
}

func asCoreError(err error) *core.Error {
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return core.WrapError(core.ErrBacktestFailed, err)
}

// GetStatus returns the job named by the {id} path value.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, statusBody(j))
}

// List returns a status summary of every live job, without results.
func (h *BacktestHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.List()
	out := make([]map[string]any, 0, len(jobs))
	for i := range jobs {
		s := statusBody(&jobs[i])
		delete(s, "result")
		out = append(out, s)
	}
	response.JSON(w, http.StatusOK, out)
}

func statusBody(j *job.Job) map[string]any {
	resp := map[string]any{
		"job_id":     j.ID,
		"status":     j.Status,
		"progress":   j.Progress,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		detail := map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
		if j.Error.Cause != nil {
			detail["cause"] = j.Error.Cause.Error()
		}
		resp["error"] = detail
	}
	return resp
}
