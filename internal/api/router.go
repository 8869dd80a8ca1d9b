// Package api wires the HTTP routes of the experiment server.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"demand-montecarlo/internal/api/handlers"
	"demand-montecarlo/internal/api/middleware"
	"demand-montecarlo/internal/api/models"
)

// Deps are the collaborators of the router.
type Deps struct {
	Experiments *handlers.ExperimentHandler
	Presets     *handlers.PresetHandler
	Logger      *slog.Logger
	// StaticDir, when it exists, is served as a single-page app.
	StaticDir string
	// Origins allowed by CORS; empty allows any.
	Origins []string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	router := gin.New()
	router.Use(middleware.ErrorHandler(d.Logger))
	router.Use(middleware.CORS(d.Origins...))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/experiments", d.Experiments.RunExperiment)
		v1.GET("/experiments/:id", d.Experiments.GetExperiment)
		v1.GET("/experiments/:id/plot", d.Experiments.GetPlot)
		v1.GET("/experiments/:id/bands.csv", d.Experiments.GetBandsCSV)
		v1.GET("/experiments/:id/bands.xlsx", d.Experiments.GetWorkbook)
		v1.GET("/experiments/:id/runs.csv", d.Experiments.GetRunsCSV)
		v1.GET("/experiments/:id/pairs", d.Experiments.GetPairs)

		v1.GET("/parameters", handlers.ListParameters)
		if d.Presets != nil {
			v1.GET("/presets", d.Presets.ListPresets)
		}
	}

	serveStatic(router, d.StaticDir, d.Logger)
	return router
}

func serveStatic(router *gin.Engine, dir string, logger *slog.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.NewError("NOT_FOUND", "route not found"))
	}
	if dir == "" {
		router.NoRoute(notFound)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		logger.Info("static directory not found, skipping static file serving", "dir", dir)
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(dir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(dir, "favicon.ico"))
	// Serve index.html for all non-API routes (SPA routing)
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			notFound(c)
			return
		}
		c.File(filepath.Join(dir, "index.html"))
	})
	logger.Info("serving static files", "dir", dir)
}
