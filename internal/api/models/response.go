package models

import (
	"time"

	"demand-montecarlo/internal/config"
)

// ExperimentResponse represents the response from an experiment run
type ExperimentResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"` // "completed", "cached"
	CreatedAt time.Time         `json:"created_at"`
	Config    config.Config     `json:"config"`
	Summary   ExperimentSummary `json:"summary"`
	Bands     []Band            `json:"bands"`

	InclusionRaw       [][]float64 `json:"inclusion_raw"`
	InclusionSymmetric [][]float64 `json:"inclusion_symmetric"`

	Runs      []RunRow    `json:"runs,omitempty"`
	Estimated [][]float64 `json:"estimated,omitempty"`
	True      [][]float64 `json:"true,omitempty"`
}

// ExperimentSummary contains aggregated experiment results
type ExperimentSummary struct {
	Runs         int      `json:"runs"`
	GridPoints   int      `json:"grid_points"`
	Products     int      `json:"products"`
	RivalPrice   float64  `json:"rival_price"`
	Coverage     float64  `json:"coverage"`       // share of grid points with truth inside [low, high]
	MeanAbsError float64  `json:"mean_abs_error"` // mean |median - true|
	Recovery     Recovery `json:"block_recovery"`
	DurationMS   int64    `json:"duration_ms"`
}

// Recovery compares within-block and cross-block inclusion
type Recovery struct {
	Within    float64 `json:"within"`
	Cross     float64 `json:"cross"`
	Recovered bool    `json:"recovered"`
}

// Band is one grid point of the percentile summary
type Band struct {
	Price  float64 `json:"price"`
	True   float64 `json:"true"`
	Low    float64 `json:"low"`
	Median float64 `json:"median"`
	High   float64 `json:"high"`
	Mean   float64 `json:"mean"`
}

// RunRow represents one run in the experiment ledger
type RunRow struct {
	Run               int       `json:"run"`
	Seed              uint64    `json:"seed"`
	Lambdas           []float64 `json:"lambdas"`
	IncludedPairs     int       `json:"included_pairs"`
	ActiveConstraints int       `json:"active_constraints"`
	NewtonIterations  int       `json:"newton_iterations"`
	MeanElasticity    float64   `json:"mean_elasticity"`
	DurationMS        int64     `json:"duration_ms"`
}

// PairsResponse represents the ranked pairs of one experiment
type PairsResponse struct {
	Matrix string       `json:"matrix"`
	Pairs  []RankedPair `json:"pairs"`
}

// RankedPair is one product pair with 1-based product numbers
type RankedPair struct {
	Rank         int     `json:"rank"`
	Product      int     `json:"product"`
	Conditioning int     `json:"conditioning"`
	Frequency    float64 `json:"frequency"`
	WithinBlock  bool    `json:"within_block"`
}

// PresetInfo represents information about an experiment preset file
type PresetInfo struct {
	ID    string      `json:"id"`
	Title string      `json:"title"`
	File  string      `json:"file"`
	Specs PresetSpecs `json:"specs"`
}

// PresetSpecs contains the headline parameters of a preset
type PresetSpecs struct {
	Products   int `json:"products"`
	Markets    int `json:"markets"`
	Runs       int `json:"runs"`
	GridPoints int `json:"grid_points"`
}

// ParameterGroup lists the parameters of one config section
type ParameterGroup struct {
	Section     string          `json:"section"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a config parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "int", "string", "bool"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// NewError builds an ErrorResponse.
func NewError(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}
