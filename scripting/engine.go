package scripting

import (
	"context"
)

// Engine evaluates scripts against values bound into its global scope.
type Engine interface {
	// Execute runs source and returns the exported completion value.
	Execute(ctx context.Context, source string) (interface{}, error)

	// Run executes a compiled program.
	Run(ctx context.Context, p *Program) (interface{}, error)

	// Bind exposes value to scripts under name.
	Bind(name string, value interface{}) error
}

// Predicate is a script whose completion value is read as a boolean.
type Predicate interface {
	Test(ctx context.Context, p *Program) (bool, error)
}
