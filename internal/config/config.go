package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"demand-montecarlo/internal/analysis"
	"demand-montecarlo/internal/estimate"
	"demand-montecarlo/internal/model"
	"demand-montecarlo/internal/montecarlo"
	"demand-montecarlo/internal/selection"
)

// Config is the on-disk experiment configuration shape (YAML).
type Config struct {
	// Optional: start from another experiment file (e.g. configs/study.yaml) and
	// override only the fields set here.
	BaseFile string `yaml:"base_file" json:"-"`

	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`
	Selection  SelectionConfig  `yaml:"selection" json:"selection"`
	Estimation EstimationConfig `yaml:"estimation" json:"estimation"`
	Elasticity ElasticityConfig `yaml:"elasticity" json:"elasticity"`
	Study      StudyConfig      `yaml:"study" json:"study"`
	Report     ReportConfig     `yaml:"report" json:"report"`
}

type SimulationConfig struct {
	Products         int     `yaml:"products" json:"products" validate:"min=1,max=10"`
	Markets          int     `yaml:"markets" json:"markets" validate:"min=10"`
	PriceCoefficient float64 `yaml:"price_coefficient" json:"price_coefficient" validate:"ne=0"`
	XiStdDev         float64 `yaml:"xi_std_dev" json:"xi_std_dev" validate:"gte=0"`
	Blocks           int     `yaml:"blocks" json:"blocks" validate:"min=1,max=5"`
}

type SelectionConfig struct {
	Folds           int  `yaml:"folds" json:"folds" validate:"min=2"`
	Lambdas         int  `yaml:"lambdas" json:"lambdas" validate:"min=2"`
	StrongHierarchy bool `yaml:"strong_hierarchy" json:"strong_hierarchy"`
	Bootstrap       int  `yaml:"bootstrap" json:"bootstrap" validate:"gte=0"`
}

type EstimationConfig struct {
	Order      int     `yaml:"order" json:"order" validate:"min=1,max=6"`
	IVOrder    int     `yaml:"iv_order" json:"iv_order" validate:"gte=0,max=6"`
	Constraint string  `yaml:"constraint" json:"constraint" validate:"oneof=none monotone monotone_all"`
	Ridge      float64 `yaml:"ridge" json:"ridge" validate:"gte=0"`
}

// ElasticityConfig names the elasticity pair with 1-based product numbers.
type ElasticityConfig struct {
	Product       int     `yaml:"product" json:"product" validate:"min=1"`
	Conditioning  int     `yaml:"conditioning" json:"conditioning" validate:"min=1"`
	NewtonMaxIter int     `yaml:"newton_max_iter" json:"newton_max_iter" validate:"gte=0"`
	NewtonTol     float64 `yaml:"newton_tol" json:"newton_tol" validate:"gte=0"`
}

type StudyConfig struct {
	Runs       int    `yaml:"runs" json:"runs" validate:"min=1"`
	GridPoints int    `yaml:"grid_points" json:"grid_points" validate:"min=2,max=1000"`
	Seed       uint64 `yaml:"seed" json:"seed"`
	Workers    int    `yaml:"workers" json:"workers" validate:"gte=0"`
}

type ReportConfig struct {
	Low    float64 `yaml:"low" json:"low" validate:"gte=0,lte=1"`
	Median float64 `yaml:"median" json:"median" validate:"gte=0,lte=1"`
	High   float64 `yaml:"high" json:"high" validate:"gte=0,lte=1"`
	Title  string  `yaml:"title" json:"title"`
}

// Default is the four-product study: two 2-product logit blocks, 1000
// markets, beta=-0.4, 10 grid points and the 10/50/90 band.
func Default() Config {
	return Config{
		Simulation: SimulationConfig{Products: 2, Markets: 1000, PriceCoefficient: -0.4, XiStdDev: 0.15, Blocks: 2},
		Selection:  SelectionConfig{Folds: 5, Lambdas: 10, StrongHierarchy: true, Bootstrap: 0},
		Estimation: EstimationConfig{Order: 2, Constraint: string(estimate.ConstraintMonotone), Ridge: 1e-8},
		Elasticity: ElasticityConfig{Product: 1, Conditioning: 1, NewtonMaxIter: 100, NewtonTol: 1e-9},
		Study:      StudyConfig{Runs: 100, GridPoints: 10, Seed: 1},
		Report:     ReportConfig{Low: 0.1, Median: 0.5, High: 0.9},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked decodes Default(), then base_file if set, then path, each
// layer overriding only the keys it contains. It does not validate.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		BaseFile string `yaml:"base_file"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	c := Default()
	if head.BaseFile != "" {
		basePath := head.BaseFile
		if !filepath.IsAbs(basePath) {
			// Prefer paths relative to the config file, falling back to cwd.
			cand := filepath.Join(filepath.Dir(path), basePath)
			if _, err := os.Stat(cand); err == nil {
				basePath = cand
			}
		}
		baseRaw, err := os.ReadFile(basePath)
		if err != nil {
			return nil, fmt.Errorf("base_file: %w", err)
		}
		if err := yaml.Unmarshal(baseRaw, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", basePath, err)
		}
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.BaseFile = head.BaseFile
	return &c, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report YAML key names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("config invalid: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	products := c.Simulation.Products * c.Simulation.Blocks
	if c.Elasticity.Product > products || c.Elasticity.Conditioning > products {
		return fmt.Errorf("config invalid: elasticity pair (%d,%d) outside 1..%d",
			c.Elasticity.Product, c.Elasticity.Conditioning, products)
	}
	if products < 2 {
		return errors.New("config invalid: the study needs at least 2 products")
	}
	if err := c.Levels().Validate(); err != nil {
		return fmt.Errorf("config invalid: report: %w", err)
	}
	return nil
}

func (c *Config) Levels() analysis.Levels {
	return analysis.Levels{Low: c.Report.Low, Median: c.Report.Median, High: c.Report.High}
}

// Experiment converts the configuration into an engine experiment.
func (c *Config) Experiment() montecarlo.Experiment {
	return montecarlo.Experiment{
		Logit: model.LogitParams{
			Products:         c.Simulation.Products,
			Markets:          c.Simulation.Markets,
			PriceCoefficient: c.Simulation.PriceCoefficient,
			XiStdDev:         c.Simulation.XiStdDev,
		},
		Blocks:     c.Simulation.Blocks,
		Runs:       c.Study.Runs,
		GridPoints: c.Study.GridPoints,
		Seed:       c.Study.Seed,
		Workers:    c.Study.Workers,
		Pair: model.Pair{
			Product:      c.Elasticity.Product - 1,
			Conditioning: c.Elasticity.Conditioning - 1,
		},
		Selection: selection.Options{
			Folds:           c.Selection.Folds,
			Lambdas:         c.Selection.Lambdas,
			StrongHierarchy: c.Selection.StrongHierarchy,
			Bootstrap:       c.Selection.Bootstrap,
		},
		Estimation: estimate.Options{
			Order:      c.Estimation.Order,
			IVOrder:    c.Estimation.IVOrder,
			Constraint: estimate.Constraint(c.Estimation.Constraint),
			Ridge:      c.Estimation.Ridge,
		},
		NewtonMaxIter: c.Elasticity.NewtonMaxIter,
		NewtonTol:     c.Elasticity.NewtonTol,
	}
}
