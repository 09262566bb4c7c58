package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/raykavin/meanmomentum/pkg/logger"
)

// RandomSearch evaluates maxIterations parameter sets drawn uniformly from the ranges
type RandomSearch struct {
	parameters    []Parameter
	maxIterations int
	parallelism   int
	log           logger.Logger
	rng           *rand.Rand
}

var _ Optimizer = (*RandomSearch)(nil)

func NewRandomSearch(config *Config) (*RandomSearch, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.validate(); err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &RandomSearch{
		parameters:    config.Parameters,
		maxIterations: config.MaxIterations,
		parallelism:   config.Parallelism,
		log:           config.Logger,
		rng:           rand.New(rand.NewSource(seed)),
	}, nil
}

func (r *RandomSearch) Optimize(ctx context.Context, evaluator Evaluator, targetMetric MetricName, maximize bool) ([]*Result, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator cannot be nil")
	}

	parameterSets := make([]ParameterSet, r.maxIterations)
	for i := range parameterSets {
		set := make(ParameterSet, len(r.parameters))
		for _, param := range r.parameters {
			set[param.Name] = r.randomValue(param)
		}
		parameterSets[i] = set
	}

	r.logf("Starting random search with %d iterations", len(parameterSets))

	results, err := runEvaluations(ctx, r.log, evaluator, parameterSets, r.parallelism)
	if err != nil {
		return nil, err
	}
	rank(results, targetMetric, maximize)

	r.logf("Random search completed with %d results", len(results))
	return results, nil
}

// randomValue draws uniformly from the parameter's range
func (r *RandomSearch) randomValue(param Parameter) any {
	if param.Type == TypeInt {
		low, high := int(math.Ceil(param.Min)), int(math.Floor(param.Max))
		if high <= low {
			return low
		}
		return low + r.rng.Intn(high-low+1)
	}
	return param.value(param.Min + r.rng.Float64()*(param.Max-param.Min))
}

func (r *RandomSearch) logf(format string, args ...any) {
	if r.log != nil {
		r.log.Infof(format, args...)
	}
}
