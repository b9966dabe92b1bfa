package filter

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

// EvaluatorOption configures an evaluator
type EvaluatorOption func(*ConcurrentEvaluator)

// WithWorkers sets the number of worker goroutines
func WithWorkers(workers int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if workers > 0 {
			e.workerCount = workers
		}
	}
}

// WithBatchSize sets the batch size for chunked processing
func WithBatchSize(size int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// ConcurrentEvaluator implements Evaluator. Matches keep the input order.
type ConcurrentEvaluator struct {
	workerCount int
	batchSize   int
}

var _ Evaluator = (*ConcurrentEvaluator)(nil)

// NewConcurrentEvaluator creates a new concurrent evaluator
func NewConcurrentEvaluator(opts ...EvaluatorOption) *ConcurrentEvaluator {
	e := &ConcurrentEvaluator{
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   100,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the entries matching filter
func (e *ConcurrentEvaluator) Evaluate(ctx context.Context, filter CompiledFilter, entries []anime.LibraryEntry) ([]anime.LibraryEntry, error) {
	if len(entries) == 0 {
		return []anime.LibraryEntry{}, nil
	}

	// For small libraries, don't bother with concurrency
	if len(entries) < e.batchSize {
		return evaluateSequential(filter, entries), nil
	}

	matched := make([]bool, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workerCount)

	for start := 0; start < len(entries); start += e.batchSize {
		start := start
		end := min(start+e.batchSize, len(entries))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				matched[i] = filter.Evaluate(entries[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]anime.LibraryEntry, 0)
	for i, ok := range matched {
		if ok {
			out = append(out, entries[i])
		}
	}
	return out, nil
}

func evaluateSequential(filter CompiledFilter, entries []anime.LibraryEntry) []anime.LibraryEntry {
	out := make([]anime.LibraryEntry, 0)
	for _, entry := range entries {
		if filter.Evaluate(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// Resolve picks the expression to use: an explicit expression wins over a
// named preset, which wins over the default preset. An empty result means no
// filtering.
func Resolve(expression, preset string, presets map[string]string, defaultPreset string) (string, error) {
	if expression != "" {
		return expression, nil
	}
	if preset != "" {
		expr, ok := presets[preset]
		if !ok {
			return "", &CompilationError{Expression: preset, Reason: "preset lookup", Err: ErrUnknownPreset}
		}
		return expr, nil
	}
	if defaultPreset != "" {
		if expr, ok := presets[defaultPreset]; ok {
			return expr, nil
		}
	}
	return "", nil
}
