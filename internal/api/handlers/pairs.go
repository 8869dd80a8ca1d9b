package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/api/models"
)

// GetPairs handles GET /api/v1/experiments/:id/pairs
func (h *ExperimentHandler) GetPairs(c *gin.Context) {
	var req models.PairsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.NewError("INVALID_REQUEST", err.Error()))
		return
	}
	rec, ok := h.record(c)
	if !ok {
		return
	}

	matrix := req.Matrix
	if matrix == "" {
		matrix = "symmetric"
	}
	inc := rec.result.InclusionSymmetric
	if matrix == "raw" {
		inc = rec.result.InclusionRaw
	}

	block := rec.response.Config.Simulation.Products
	ranked := analysis.RankPairs(inc)
	if req.Limit > 0 && req.Limit < len(ranked) {
		ranked = ranked[:req.Limit]
	}

	out := make([]models.RankedPair, 0, len(ranked))
	for i, p := range ranked {
		out = append(out, models.RankedPair{
			Rank:         i + 1,
			Product:      p.Product + 1,
			Conditioning: p.Conditioning + 1,
			Frequency:    p.Frequency,
			WithinBlock:  p.Product/block == p.Conditioning/block,
		})
	}
	c.JSON(http.StatusOK, models.PairsResponse{Matrix: matrix, Pairs: out})
}
