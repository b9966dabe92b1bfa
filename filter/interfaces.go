// Package filter compiles expr-lang expressions into predicates over library
// entries.
package filter

import (
	"context"

	"github.com/Tarcizioo/portal-animes-V2-sub001/anime"
)

// Filter defines the basic interface for library filters
type Filter interface {
	// Evaluate checks if an entry matches the filter criteria
	Evaluate(entry anime.LibraryEntry) bool
}

// CompiledFilter represents a pre-compiled filter ready for evaluation
type CompiledFilter interface {
	Filter

	// Expression returns the original filter expression
	Expression() string
}

// Compiler compiles filter expressions into executable filters
type Compiler interface {
	// Compile parses and compiles a filter expression
	Compile(expression string) (CompiledFilter, error)
}

// CachingCompiler provides caching for compiled filters
type CachingCompiler interface {
	Compiler

	// Clear removes all cached filters
	Clear()

	// Size returns the number of cached filters
	Size() int
}

// Evaluator applies a filter to a whole library
type Evaluator interface {
	Evaluate(ctx context.Context, filter CompiledFilter, entries []anime.LibraryEntry) ([]anime.LibraryEntry, error)
}
