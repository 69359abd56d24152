package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/newthinker/argus/internal/core"
	"github.com/newthinker/argus/internal/strategy"
	"github.com/newthinker/argus/internal/strategy/ma_crossover"
)

type gridPoint struct {
	index  int
	params core.StrategyParams
}

type evaluation struct {
	candidate Candidate
	skip      string
}

// Optimize grid-searches fast/slow windows with an in-sample / out-of-sample
// split. Every candidate is simulated on each segment independently and
// ranked by OS total return desc, OS max drawdown asc, grid index asc.
func Optimize(ctx context.Context, series core.PriceSeries, req OptimizeRequest) (*Optimization, error) {
	return optimizeWith(ctx, series, req, ma_crossover.Factory)
}

func optimizeWith(ctx context.Context, series core.PriceSeries, req OptimizeRequest, factory strategy.Factory) (*Optimization, error) {
	if !(req.Split > 0 && req.Split < 1) {
		return nil, core.Errorf(core.ErrInvalidParams, "split must be in (0, 1), got %v", req.Split)
	}
	if req.TopK < 1 {
		return nil, core.Errorf(core.ErrInvalidParams, "top_k must be >= 1, got %d", req.TopK)
	}
	n := series.Len()
	if n < 2 {
		return nil, core.Errorf(core.ErrEmptySeries, "%s: %d bars", series.Symbol, n)
	}

	splitIdx := int(req.Split * float64(n))
	is := series.Slice(0, splitIdx)
	oos := series.Slice(splitIdx, n)

	grid, skipped := enumerateGrid(req.FastValues, req.SlowValues)
	gridSize := len(grid) + len(skipped)

	results := make([]evaluation, len(grid))
	eval := func(i int) {
		results[i] = evaluate(grid[i], is, oos, factory)
	}

	if req.Workers > 1 && len(grid) > 1 {
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < min(req.Workers, len(grid)); w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					eval(i)
				}
			}()
		}
	feed:
		for i := range grid {
			select {
			case <-ctx.Done():
				break feed
			case jobs <- i:
			}
		}
		close(jobs)
		wg.Wait()
	} else {
		for i := range grid {
			if ctx.Err() != nil {
				break
			}
			eval(i)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []Candidate
	for i, res := range results {
		if res.skip != "" {
			skipped = append(skipped, SkippedCandidate{Params: grid[i].params, Index: grid[i].index, Reason: res.skip})
			continue
		}
		candidates = append(candidates, res.candidate)
	}
	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].Index < skipped[j].Index })

	if len(candidates) == 0 {
		return nil, core.Errorf(core.ErrNoValidCandidates, "%s: %d grid points, none evaluable", series.Symbol, gridSize)
	}

	rank(candidates)
	top := min(req.TopK, len(candidates))

	return &Optimization{
		Symbol:      series.Symbol,
		Split:       req.Split,
		BarsTotal:   n,
		BarsIS:      is.Len(),
		BarsOS:      oos.Len(),
		Best:        candidates[0],
		Leaderboard: append([]Candidate(nil), candidates[:top]...),
		Evaluated:   len(candidates),
		Skipped:     skipped,
	}, nil
}

// enumerateGrid walks fast values outer, slow values inner, in supplied
// order. Invalid and repeated pairs are returned as skipped.
func enumerateGrid(fastValues, slowValues []int) ([]gridPoint, []SkippedCandidate) {
	var grid []gridPoint
	var skipped []SkippedCandidate
	seen := make(map[core.StrategyParams]int)

	index := 0
	for _, f := range fastValues {
		for _, s := range slowValues {
			p := core.StrategyParams{Fast: f, Slow: s}
			switch prev, dup := seen[p]; {
			case dup:
				skipped = append(skipped, SkippedCandidate{Params: p, Index: index, Reason: fmt.Sprintf("duplicate of grid index %d", prev)})
			case p.Validate() != nil:
				skipped = append(skipped, SkippedCandidate{Params: p, Index: index, Reason: p.Validate().Error()})
			default:
				seen[p] = index
				grid = append(grid, gridPoint{index: index, params: p})
			}
			index++
		}
	}
	return grid, skipped
}

func evaluate(gp gridPoint, is, oos core.PriceSeries, factory strategy.Factory) evaluation {
	need := max(gp.params.Slow, 2)
	if is.Len() < need {
		return evaluation{skip: fmt.Sprintf("in-sample segment has %d bars, need %d", is.Len(), need)}
	}
	if oos.Len() < need {
		return evaluation{skip: fmt.Sprintf("out-of-sample segment has %d bars, need %d", oos.Len(), need)}
	}

	strat, err := factory(gp.params)
	if err != nil {
		return evaluation{skip: err.Error()}
	}
	isSim, err := run(strat, is)
	if err != nil {
		return evaluation{skip: "in-sample: " + err.Error()}
	}
	osSim, err := run(strat, oos)
	if err != nil {
		return evaluation{skip: "out-of-sample: " + err.Error()}
	}
	return evaluation{candidate: Candidate{
		Params: gp.params,
		Index:  gp.index,
		IS:     isSim.Summary,
		OS:     osSim.Summary,
	}}
}

func run(strat strategy.Strategy, series core.PriceSeries) (Simulation, error) {
	signal, err := strat.Positions(series)
	if err != nil {
		return Simulation{}, err
	}
	return Simulate(series, signal)
}

// rank orders candidates by the ranking key only, so the result does not
// depend on evaluation order.
func rank(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i], c[j]
		if a.OS.TotalReturn != b.OS.TotalReturn {
			return a.OS.TotalReturn > b.OS.TotalReturn
		}
		if a.OS.MaxDrawdown != b.OS.MaxDrawdown {
			return a.OS.MaxDrawdown < b.OS.MaxDrawdown
		}
		return a.Index < b.Index
	})
}
