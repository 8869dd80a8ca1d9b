package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"demand-montecarlo/internal/api/models"
	"demand-montecarlo/internal/config"
)

// PresetHandler serves the experiment YAML files of a directory.
type PresetHandler struct {
	dir    string
	logger *slog.Logger
}

// NewPresetHandler creates a new preset handler. An empty dir means
// ./configs relative to the working directory.
func NewPresetHandler(dir string, logger *slog.Logger) *PresetHandler {
	if dir == "" {
		dir = "configs"
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("preset directory", "dir", dir)
	return &PresetHandler{dir: dir, logger: logger.With("component", "preset_handler")}
}

// Dir returns the preset directory path.
func (h *PresetHandler) Dir() string { return h.dir }

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.logger.Warn("failed to read preset directory", "dir", h.dir, "error", err)
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		info, err := h.loadPresetInfo(path, entry.Name())
		if err != nil {
			h.logger.Warn("skipping preset", "file", path, "error", err)
			continue
		}
		presets = append(presets, *info)
	}

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}

// Resolve maps a preset id to its file, refusing anything that is not a
// plain file name inside the preset directory.
func (h *PresetHandler) Resolve(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid preset %q", id)
	}
	path := filepath.Join(h.dir, id+".yaml")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("preset %q not found", id)
	}
	return path, nil
}

func (h *PresetHandler) loadPresetInfo(path, filename string) (*models.PresetInfo, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filename, ".yaml")
	title := cfg.Report.Title
	if title == "" {
		title = id
	}
	return &models.PresetInfo{
		ID:    id,
		Title: title,
		File:  filename,
		Specs: models.PresetSpecs{
			Products:   cfg.Simulation.Products * cfg.Simulation.Blocks,
			Markets:    cfg.Simulation.Markets,
			Runs:       cfg.Study.Runs,
			GridPoints: cfg.Study.GridPoints,
		},
	}, nil
}
