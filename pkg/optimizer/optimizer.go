// Package optimizer searches simulation parameters for the combination that maximizes a metric.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/raykavin/meanmomentum/pkg/logger"
)

var (
	ErrNoParameters     = errors.New("at least one parameter must be provided")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// Parameter is a numeric simulation setting searched over [Min, Max].
// Integer parameters take whole values; Step spaces the grid.
type Parameter struct {
	Name        string
	Description string
	Default     float64
	Min         float64
	Max         float64
	Step        float64
	Type        ParameterType
}

type ParameterType string

const (
	TypeInt   ParameterType = "int"
	TypeFloat ParameterType = "float"
)

// value converts a point of the range into the type the setter expects
func (p Parameter) value(x float64) any {
	if p.Type == TypeInt {
		return int(math.Round(x))
	}
	return math.Round(x*1e9) / 1e9
}

// Contains reports whether value has the parameter's type and lies within its range
func (p Parameter) Contains(value any) bool {
	var x float64
	switch v := value.(type) {
	case int:
		if p.Type != TypeInt {
			return false
		}
		x = float64(v)
	case float64:
		if p.Type != TypeFloat {
			return false
		}
		x = v
	default:
		return false
	}
	return x >= p.Min && x <= p.Max
}

// ParameterSet represents a collection of parameters with specific values
type ParameterSet map[string]any

// Result represents the outcome of a single evaluation
type Result struct {
	Parameters ParameterSet
	Metrics    map[string]float64
	Duration   time.Duration
}

type MetricName string

const (
	MetricTotalReturn  MetricName = "total_return"
	MetricSharpeRatio  MetricName = "sharpe_ratio"
	MetricDrawdown     MetricName = "drawdown"
	MetricWinRate      MetricName = "win_rate"
	MetricProfit       MetricName = "profit"
	MetricProfitFactor MetricName = "profit_factor"
	MetricTradeCount   MetricName = "trade_count"
)

// Evaluator runs a simulation with the given parameters and returns its metrics
type Evaluator interface {
	Evaluate(ctx context.Context, params ParameterSet) (*Result, error)
}

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	Optimize(ctx context.Context, evaluator Evaluator, targetMetric MetricName, maximize bool) ([]*Result, error)
}

// Config holds configuration for the optimization process
type Config struct {
	Parameters    []Parameter
	MaxIterations int
	Parallelism   int
	Logger        logger.Logger
	TargetMetric  MetricName
	Maximize      bool
	TopN          int
	Seed          int64 // random search seed, 0 picks one from the clock
}

// NewConfig creates a default configuration ranking by Sharpe ratio
func NewConfig() *Config {
	return &Config{
		Parameters:    []Parameter{},
		MaxIterations: 100,
		Parallelism:   1,
		TargetMetric:  MetricSharpeRatio,
		Maximize:      true,
		TopN:          5,
	}
}

func (c *Config) WithParameters(params ...Parameter) *Config {
	c.Parameters = append(c.Parameters, params...)
	return c
}

func (c *Config) WithMaxIterations(iterations int) *Config {
	c.MaxIterations = iterations
	return c
}

func (c *Config) WithParallelism(n int) *Config {
	c.Parallelism = n
	return c
}

func (c *Config) WithLogger(logger logger.Logger) *Config {
	c.Logger = logger
	return c
}

// WithTargetMetric sets the metric to rank by and its direction
func (c *Config) WithTargetMetric(metric MetricName, maximize bool) *Config {
	c.TargetMetric = metric
	c.Maximize = maximize
	return c
}

func (c *Config) WithTopN(n int) *Config {
	c.TopN = n
	return c
}

func (c *Config) WithSeed(seed int64) *Config {
	c.Seed = seed
	return c
}

func (c *Config) validate() error {
	if len(c.Parameters) == 0 {
		return ErrNoParameters
	}
	if c.Parallelism < 1 {
		c.Parallelism = 1
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", c.MaxIterations)
	}
	for _, param := range c.Parameters {
		if param.Type != TypeInt && param.Type != TypeFloat {
			return fmt.Errorf("parameter %s: unsupported type %q", param.Name, param.Type)
		}
		if param.Min > param.Max {
			return fmt.Errorf("parameter %s: min %v above max %v", param.Name, param.Min, param.Max)
		}
	}
	return nil
}
