package optimizer

import (
	"context"
	"fmt"
	"math"

	"github.com/raykavin/meanmomentum/pkg/logger"
)

// GridSearch evaluates every combination of the parameter values
type GridSearch struct {
	parameters    []Parameter
	maxIterations int
	parallelism   int
	log           logger.Logger
}

var _ Optimizer = (*GridSearch)(nil)

func NewGridSearch(config *Config) (*GridSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &GridSearch{
		parameters:    config.Parameters,
		maxIterations: config.MaxIterations,
		parallelism:   config.Parallelism,
		log:           config.Logger,
	}, nil
}

// Optimize evaluates the grid, truncated to maxIterations combinations, and returns
// the results ranked by targetMetric.
func (g *GridSearch) Optimize(ctx context.Context, evaluator Evaluator, targetMetric MetricName, maximize bool) ([]*Result, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	parameterSets, err := g.generateParameterSets()
	if err != nil {
		return nil, err
	}

	if len(parameterSets) > g.maxIterations {
		g.logf("Limiting parameter combinations from %d to %d", len(parameterSets), g.maxIterations)
		parameterSets = parameterSets[:g.maxIterations]
	}

	g.logf("Starting grid search with %d parameter combinations", len(parameterSets))

	results, err := runEvaluations(ctx, g.log, evaluator, parameterSets, g.parallelism)
	if err != nil {
		return nil, err
	}
	rank(results, targetMetric, maximize)

	g.logf("Grid search completed with %d results", len(results))
	return results, nil
}

// generateParameterSets creates the cartesian product of the parameter values
func (g *GridSearch) generateParameterSets() ([]ParameterSet, error) {
	parameterSets := []ParameterSet{make(ParameterSet)}

	for _, param := range g.parameters {
		values, err := parameterValues(param)
		if err != nil {
			return nil, err
		}

		newSets := make([]ParameterSet, 0, len(parameterSets)*len(values))
		for _, set := range parameterSets {
			for _, value := range values {
				newSet := make(ParameterSet, len(set)+1)
				for k, v := range set {
					newSet[k] = v
				}
				newSet[param.Name] = value
				newSets = append(newSets, newSet)
			}
		}
		parameterSets = newSets
	}

	return parameterSets, nil
}

// parameterValues steps from min to max inclusive
func parameterValues(param Parameter) ([]any, error) {
	if param.Step <= 0 {
		return nil, fmt.Errorf("parameter %s needs a positive step", param.Name)
	}

	count := int(math.Floor((param.Max-param.Min)/param.Step+1e-9)) + 1
	values := make([]any, 0, count)
	for i := 0; i < count; i++ {
		values = append(values, param.value(param.Min+float64(i)*param.Step))
	}
	return values, nil
}

func (g *GridSearch) logf(format string, args ...any) {
	if g.log != nil {
		g.log.Infof(format, args...)
	}
}
