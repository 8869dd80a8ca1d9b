package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"demand-montecarlo/internal/api/models"
	"demand-montecarlo/internal/config"
)

// ListParameters handles GET /api/v1/parameters
func ListParameters(c *gin.Context) {
	d := config.Default()
	groups := []models.ParameterGroup{
		{
			Section:     "simulation",
			Description: "Logit markets drawn per run. Blocks independent markets are combined into one.",
			Parameters: []models.ParameterInfo{
				{Name: "products", Type: "int", Description: "Inside goods per block market", Default: d.Simulation.Products},
				{Name: "markets", Type: "int", Description: "Markets per simulation", Default: d.Simulation.Markets},
				{Name: "price_coefficient", Type: "float", Description: "Utility weight on price (beta)", Default: d.Simulation.PriceCoefficient},
				{Name: "xi_std_dev", Type: "float", Description: "Standard deviation of the demand shock", Default: d.Simulation.XiStdDev},
				{Name: "blocks", Type: "int", Description: "Independent block markets combined per run", Default: d.Simulation.Blocks},
			},
		},
		{
			Section:     "selection",
			Description: "Two-stage hierarchical lasso choosing which shares enter each inverse demand.",
			Parameters: []models.ParameterInfo{
				{Name: "folds", Type: "int", Description: "Cross-validation folds", Default: d.Selection.Folds},
				{Name: "lambdas", Type: "int", Description: "Length of the penalty path", Default: d.Selection.Lambdas},
				{Name: "strong_hierarchy", Type: "bool", Description: "Interactions need both main effects (otherwise one)", Default: d.Selection.StrongHierarchy},
				{Name: "bootstrap", Type: "int", Description: "Bootstrap resamples; pairs selected in at least half are kept (0 or 1 disables)", Default: d.Selection.Bootstrap},
			},
		},
		{
			Section:     "estimation",
			Description: "Bernstein-polynomial inverse demand fitted by two-stage least squares.",
			Parameters: []models.ParameterInfo{
				{Name: "order", Type: "int", Description: "Bernstein order in shares", Default: d.Estimation.Order},
				{Name: "iv_order", Type: "int", Description: "Bernstein order in instruments (0 uses order)", Default: d.Estimation.IVOrder},
				{Name: "constraint", Type: "string", Description: "One of none, monotone, monotone_all", Default: d.Estimation.Constraint},
				{Name: "ridge", Type: "float", Description: "Relative ridge added to the normal matrix", Default: d.Estimation.Ridge},
			},
		},
		{
			Section:     "elasticity",
			Description: "Elasticity pair (1-based product numbers) and share inversion settings.",
			Parameters: []models.ParameterInfo{
				{Name: "product", Type: "int", Description: "Product whose demand responds", Default: d.Elasticity.Product},
				{Name: "conditioning", Type: "int", Description: "Product whose price moves", Default: d.Elasticity.Conditioning},
				{Name: "newton_max_iter", Type: "int", Description: "Newton iterations per starting point", Default: d.Elasticity.NewtonMaxIter},
				{Name: "newton_tol", Type: "float", Description: "Newton residual tolerance", Default: d.Elasticity.NewtonTol},
			},
		},
		{
			Section:     "study",
			Description: "Monte Carlo repetitions and price grid.",
			Parameters: []models.ParameterInfo{
				{Name: "runs", Type: "int", Description: "Number of runs S", Default: d.Study.Runs},
				{Name: "grid_points", Type: "int", Description: "Price grid points G over the product-1 interquartile range", Default: d.Study.GridPoints},
				{Name: "seed", Type: "int", Description: "Base seed; run i uses seed+i", Default: d.Study.Seed},
				{Name: "workers", Type: "int", Description: "Concurrent runs (0 uses the server default)", Default: d.Study.Workers},
			},
		},
		{
			Section:     "report",
			Description: "Quantile band and plot title.",
			Parameters: []models.ParameterInfo{
				{Name: "low", Type: "float", Description: "Lower quantile", Default: d.Report.Low},
				{Name: "median", Type: "float", Description: "Middle quantile", Default: d.Report.Median},
				{Name: "high", Type: "float", Description: "Upper quantile", Default: d.Report.High},
				{Name: "title", Type: "string", Description: "Plot title"},
			},
		},
	}
	c.JSON(http.StatusOK, gin.H{"parameters": groups})
}
