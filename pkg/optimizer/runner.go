package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/raykavin/meanmomentum/pkg/logger"
)

// runEvaluations evaluates every set with at most parallelism evaluations in flight.
// Results keep the order of parameterSets before ranking, so ties rank deterministically.
func runEvaluations(ctx context.Context, log logger.Logger, evaluator Evaluator,
	parameterSets []ParameterSet, parallelism int) ([]*Result, error) {

	var (
		results   = make([]*Result, len(parameterSets))
		wg        sync.WaitGroup
		errCh     = make(chan error, 1)
		semaphore = make(chan struct{}, parallelism)
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

loop:
	for i, params := range parameterSets {
		select {
		case <-ctx.Done():
			break loop
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(index int, paramSet ParameterSet) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := evaluator.Evaluate(ctx, paramSet)
			if err != nil {
				select {
				case errCh <- fmt.Errorf("evaluation of %s: %w", FormatParameterSet(paramSet), err):
					cancel()
				default:
				}
				return
			}

			results[index] = result
			if log != nil {
				log.Debugf("Completed evaluation %d/%d %s", index+1, len(parameterSets), FormatParameterSet(paramSet))
			}
		}(i, params)
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// rank sorts results by the target metric, keeping evaluation order among ties
func rank(results []*Result, targetMetric MetricName, maximize bool) {
	name := string(targetMetric)
	sort.SliceStable(results, func(i, j int) bool {
		if maximize {
			return results[i].Metrics[name] > results[j].Metrics[name]
		}
		return results[i].Metrics[name] < results[j].Metrics[name]
	})
}
