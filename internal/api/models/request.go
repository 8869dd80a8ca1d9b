package models

import "encoding/json"

// ExperimentRequest represents the request body for running an experiment.
// Config is decoded over the preset (or the built-in defaults), so only the
// keys to change need to be sent.
type ExperimentRequest struct {
	Preset  string            `json:"preset,omitempty"` // file name under the presets directory, without .yaml
	Config  json.RawMessage   `json:"config,omitempty"`
	Options ExperimentOptions `json:"options,omitempty"`
}

// ExperimentOptions contains optional response parameters
type ExperimentOptions struct {
	IncludeRuns    bool `json:"include_runs,omitempty"`    // default: false
	IncludeBuffers bool `json:"include_buffers,omitempty"` // S x G elasticity buffers, default: false
	NoCache        bool `json:"no_cache,omitempty"`        // rerun even if an identical config is cached
}

// PairsRequest represents the query of the pair ranking endpoint
type PairsRequest struct {
	Matrix string `form:"matrix,omitempty" binding:"omitempty,oneof=raw symmetric"` // default: symmetric
	Limit  int    `form:"limit,omitempty" binding:"omitempty,min=1"`
}

// PlotRequest represents the query of the plot endpoint
type PlotRequest struct {
	Format string `form:"format,omitempty" binding:"omitempty,oneof=png svg pdf"` // default: png
}
