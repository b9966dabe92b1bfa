package filter

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

// exprFilter implements CompiledFilter using the expr language
type exprFilter struct {
	expression string
	program    *vm.Program
	extra      map[string]any
	now        func() time.Time
}

// ExprCompilerOption configures an expr compiler
type ExprCompilerOption func(*exprCompiler)

// WithCache enables filter caching with the specified size
func WithCache(size int) ExprCompilerOption {
	return func(c *exprCompiler) {
		if size <= 0 {
			return
		}
		cache, err := lru.New[string, CompiledFilter](size)
		if err == nil {
			c.cache = cache
		}
	}
}

// WithCustomFunctions adds custom helper functions
func WithCustomFunctions(funcs map[string]any) ExprCompilerOption {
	return func(c *exprCompiler) {
		maps.Copy(c.extra, funcs)
	}
}

// WithClock sets the time source used by date helpers
func WithClock(now func() time.Time) ExprCompilerOption {
	return func(c *exprCompiler) {
		c.now = now
	}
}

// exprCompiler implements CachingCompiler for expr-based filters
type exprCompiler struct {
	extra map[string]any
	cache *lru.Cache[string, CompiledFilter]
	now   func() time.Time
}

// NewExprCompiler creates a new expr-based filter compiler
func NewExprCompiler(opts ...ExprCompilerOption) CachingCompiler {
	c := &exprCompiler{
		extra: make(map[string]any),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles an expression into an executable filter
func (c *exprCompiler) Compile(expression string) (CompiledFilter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	// Compile against a zero entry so variable types are checked
	program, err := expr.Compile(expression,
		expr.Env(environment(anime.LibraryEntry{}, c.now, c.extra)),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	filter := &exprFilter{
		expression: expression,
		program:    program,
		extra:      c.extra,
		now:        c.now,
	}

	if c.cache != nil {
		c.cache.Add(expression, filter)
	}

	return filter, nil
}

// Clear removes all cached filters
func (c *exprCompiler) Clear() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

// Size returns the number of cached filters
func (c *exprCompiler) Size() int {
	if c.cache != nil {
		return c.cache.Len()
	}
	return 0
}

// Evaluate evaluates the filter against an entry. Runtime errors count as no
// match.
func (f *exprFilter) Evaluate(entry anime.LibraryEntry) bool {
	ok, err := f.Run(entry)
	return err == nil && ok
}

// Run evaluates the filter and reports runtime errors
func (f *exprFilter) Run(entry anime.LibraryEntry) (bool, error) {
	result, err := expr.Run(f.program, environment(entry, f.now, f.extra))
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, EntryTitle: entry.Title, Err: err}
	}
	return result.(bool), nil
}

// Expression returns the original expression
func (f *exprFilter) Expression() string {
	return f.expression
}

// environment exposes an entry and the helpers to an expression
func environment(entry anime.LibraryEntry, now func() time.Time, extra map[string]any) map[string]any {
	env := make(map[string]any, 24+len(extra))

	// Date helpers
	env["now"] = now
	env["daysSince"] = func(t time.Time) int {
		return int(now().Sub(t).Hours() / 24)
	}
	env["daysAgo"] = func(days int) time.Time {
		return now().AddDate(0, 0, -days)
	}
	// String helpers
	env["contains"] = func(str, substr string) bool {
		return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
	}
	env["startsWith"] = func(str, prefix string) bool {
		return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
	}
	env["lower"] = strings.ToLower
	env["upper"] = strings.ToUpper

	// Entry helpers
	env["hasGenre"] = createHasGenreFunc(entry.Genres)
	env["progress"] = createProgressFunc(entry.CurrentEp, entry.TotalEp)

	// Entry properties
	env["ID"] = entry.ID
	env["Title"] = entry.Title
	env["Status"] = string(entry.Status)
	env["CurrentEp"] = entry.CurrentEp
	env["TotalEp"] = entry.TotalEp
	env["Score"] = entry.Score
	env["Favorite"] = entry.IsFavorite
	env["Genres"] = entry.Genres
	env["UpdatedAt"] = entry.UpdatedAt

	maps.Copy(env, extra)
	return env
}

func createHasGenreFunc(genres []string) func(string) bool {
	lower := make([]string, len(genres))
	for i, g := range genres {
		lower[i] = strings.ToLower(g)
	}
	return func(genre string) bool {
		return slices.Contains(lower, strings.ToLower(genre))
	}
}

// createProgressFunc returns watched episodes as a percentage; 0 when the
// total is unknown
func createProgressFunc(current, total int) func() float64 {
	return func() float64 {
		if total <= 0 {
			return 0
		}
		return float64(min(current, total)) * 100 / float64(total)
	}
}
