package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/api/models"
	"demand-montecarlo/internal/config"
	"demand-montecarlo/internal/data"
	"demand-montecarlo/internal/montecarlo"
	"demand-montecarlo/internal/report"
)

// Runner executes an experiment. *montecarlo.Engine satisfies it.
type Runner interface {
	Run(ctx context.Context, exp montecarlo.Experiment) (*montecarlo.Result, error)
}

// ExperimentHandler handles experiment-related requests
type ExperimentHandler struct {
	runner  Runner
	store   *ExperimentStore
	presets *PresetHandler
	maxRuns int
	workers int
	logger  *slog.Logger
}

// NewExperimentHandler creates a new experiment handler. workers, when > 0,
// is used for requests that leave study.workers at 0.
func NewExperimentHandler(runner Runner, store *ExperimentStore, presets *PresetHandler, maxRuns, workers int, logger *slog.Logger) *ExperimentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExperimentHandler{
		runner:  runner,
		store:   store,
		presets: presets,
		maxRuns: maxRuns,
		workers: workers,
		logger:  logger.With("component", "experiment_handler"),
	}
}

// RunExperiment handles POST /api/v1/experiments
func (h *ExperimentHandler) RunExperiment(c *gin.Context) {
	var req models.ExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}

	cfg, err := h.buildConfig(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_CONFIG", err.Error()))
		return
	}
	if cfg.Study.Runs > h.maxRuns {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "TOO_MANY_RUNS",
				Message: fmt.Sprintf("study.runs is %d, the server allows at most %d", cfg.Study.Runs, h.maxRuns),
				Details: map[string]interface{}{"max_runs": h.maxRuns},
			},
		})
		return
	}
	if cfg.Study.Workers == 0 && h.workers > 0 {
		cfg.Study.Workers = h.workers
	}

	key, err := data.Key(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("INTERNAL_ERROR", err.Error()))
		return
	}
	if !req.Options.NoCache {
		if rec, ok := h.store.lookup(key); ok {
			resp := h.buildResponse(rec, req.Options)
			resp.Status = "cached"
			c.JSON(http.StatusOK, resp)
			return
		}
	}

	started := time.Now()
	result, err := h.runner.Run(c.Request.Context(), cfg.Experiment())
	if err != nil {
		h.logger.Error("experiment failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, models.NewError("EXPERIMENT_ERROR", err.Error()))
		return
	}
	summary, err := analysis.Summarize(result.Grid.Prices, result.Estimated, result.True, cfg.Levels())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("SUMMARY_ERROR", err.Error()))
		return
	}

	rec := &experimentRecord{result: result, summary: summary}
	rec.response = models.ExperimentResponse{
		ID:                 uuid.NewString(),
		Status:             "completed",
		CreatedAt:          started.UTC(),
		Config:             *cfg,
		Summary:            buildSummary(cfg, result, summary, time.Since(started)),
		Bands:              buildBands(summary),
		InclusionRaw:       matrixRows(result.InclusionRaw),
		InclusionSymmetric: matrixRows(result.InclusionSymmetric),
	}
	h.store.put(key, rec)
	h.logger.Info("experiment stored", "id", rec.response.ID, "runs", cfg.Study.Runs)

	c.JSON(http.StatusOK, h.buildResponse(rec, req.Options))
}

// GetExperiment handles GET /api/v1/experiments/:id
func (h *ExperimentHandler) GetExperiment(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	opts := models.ExperimentOptions{
		IncludeRuns:    c.Query("include_runs") == "true",
		IncludeBuffers: c.Query("include_buffers") == "true",
	}
	c.JSON(http.StatusOK, h.buildResponse(rec, opts))
}

// GetPlot handles GET /api/v1/experiments/:id/plot
func (h *ExperimentHandler) GetPlot(c *gin.Context) {
	var req models.PlotRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	rec, ok := h.record(c)
	if !ok {
		return
	}
	format := req.Format
	if format == "" {
		format = "png"
	}

	var buf bytes.Buffer
	opts := report.PlotOptions{Title: rec.response.Config.Report.Title}
	if err := report.WritePlot(&buf, format, rec.summary, opts); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("PLOT_ERROR", err.Error()))
		return
	}
	c.Data(http.StatusOK, plotContentType[format], buf.Bytes())
}

var plotContentType = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

// GetBandsCSV handles GET /api/v1/experiments/:id/bands.csv
func (h *ExperimentHandler) GetBandsCSV(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.EncodeBandsCSV(&buf, rec.summary); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("EXPORT_ERROR", err.Error()))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bands.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// GetWorkbook handles GET /api/v1/experiments/:id/bands.xlsx
func (h *ExperimentHandler) GetWorkbook(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.EncodeWorkbook(&buf, rec.summary, rec.result); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("EXPORT_ERROR", err.Error()))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="bands.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// GetRunsCSV handles GET /api/v1/experiments/:id/runs.csv
func (h *ExperimentHandler) GetRunsCSV(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := montecarlo.EncodeLedgerCSV(&buf, rec.result.Ledger); err != nil {
		c.JSON(http.StatusInternalServerError, models.NewError("EXPORT_ERROR", err.Error()))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="runs.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// Helper methods

func (h *ExperimentHandler) record(c *gin.Context) (*experimentRecord, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_ID", "experiment id must be a UUID"))
		return nil, false
	}
	rec, ok := h.store.get(id)
	if !ok {
		c.JSON(http.StatusNotFound, models.NewError("NOT_FOUND", fmt.Sprintf("experiment %s not found or expired", id)))
		return nil, false
	}
	return rec, true
}

// buildConfig starts from the preset (or defaults), decodes the request's
// config over it and validates the result.
func (h *ExperimentHandler) buildConfig(req models.ExperimentRequest) (*config.Config, error) {
	var cfg *config.Config
	if req.Preset != "" {
		if h.presets == nil {
			return nil, errors.New("presets are not configured")
		}
		path, err := h.presets.Resolve(req.Preset)
		if err != nil {
			return nil, err
		}
		if cfg, err = config.LoadUnchecked(path); err != nil {
			return nil, err
		}
	} else {
		def := config.Default()
		cfg = &def
	}
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (h *ExperimentHandler) buildResponse(rec *experimentRecord, opts models.ExperimentOptions) models.ExperimentResponse {
	resp := rec.response
	if opts.IncludeRuns {
		resp.Runs = make([]models.RunRow, 0, len(rec.result.Ledger))
		for _, r := range rec.result.Ledger {
			resp.Runs = append(resp.Runs, models.RunRow{
				Run:               r.Index + 1,
				Seed:              r.Seed,
				Lambdas:           r.Lambdas,
				IncludedPairs:     r.IncludedPairs,
				ActiveConstraints: r.ActiveConstraints,
				NewtonIterations:  r.NewtonIterations,
				MeanElasticity:    r.MeanElasticity,
				DurationMS:        r.Duration.Milliseconds(),
			})
		}
	}
	if opts.IncludeBuffers {
		resp.Estimated = matrixRows(rec.result.Estimated)
		resp.True = matrixRows(rec.result.True)
	}
	return resp
}

func buildSummary(cfg *config.Config, res *montecarlo.Result, s *analysis.Summary, took time.Duration) models.ExperimentSummary {
	rec := analysis.BlockRecovery(res.InclusionSymmetric, cfg.Simulation.Products)
	return models.ExperimentSummary{
		Runs:         s.Runs,
		GridPoints:   len(s.Bands),
		Products:     cfg.Simulation.Products * cfg.Simulation.Blocks,
		RivalPrice:   res.Grid.RivalPrice,
		Coverage:     s.Coverage(),
		MeanAbsError: s.MeanAbsError(),
		Recovery: models.Recovery{
			Within:    rec.Within,
			Cross:     rec.Cross,
			Recovered: rec.Recovered(),
		},
		DurationMS: took.Milliseconds(),
	}
}

func buildBands(s *analysis.Summary) []models.Band {
	out := make([]models.Band, 0, len(s.Bands))
	for _, b := range s.Bands {
		out = append(out, models.Band{
			Price:  b.Price,
			True:   b.True,
			Low:    b.Low,
			Median: b.Median,
			High:   b.High,
			Mean:   b.Mean,
		})
	}
	return out
}

func matrixRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
