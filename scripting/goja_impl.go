package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// Program is a parsed script, reusable across engines.
type Program struct {
	name string
	prog *goja.Program
}

// Name returns the name the program was compiled under.
func (p *Program) Name() string { return p.name }

// Compile parses source in strict mode.
func Compile(name, source string) (*Program, error) {
	prog, err := goja.Compile(name, source, true)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Program{name: name, prog: prog}, nil
}

// GojaEngine is an Engine on a single goja runtime. It is not safe for
// concurrent use.
type GojaEngine struct {
	vm *goja.Runtime
}

var (
	_ Engine    = (*GojaEngine)(nil)
	_ Predicate = (*GojaEngine)(nil)
)

func NewEngine() *GojaEngine {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return &GojaEngine{vm: vm}
}

func (e *GojaEngine) Bind(name string, value interface{}) error {
	return e.vm.Set(name, value)
}

func (e *GojaEngine) Execute(ctx context.Context, source string) (interface{}, error) {
	val, err := e.run(ctx, func() (goja.Value, error) { return e.vm.RunString(source) })
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) Run(ctx context.Context, p *Program) (interface{}, error) {
	val, err := e.run(ctx, func() (goja.Value, error) { return e.vm.RunProgram(p.prog) })
	if err != nil {
		return nil, err
	}
	return val.Export(), nil
}

func (e *GojaEngine) Test(ctx context.Context, p *Program) (bool, error) {
	val, err := e.run(ctx, func() (goja.Value, error) { return e.vm.RunProgram(p.prog) })
	if err != nil {
		return false, err
	}
	return val.ToBoolean(), nil
}

// run interrupts the runtime when ctx ends.
func (e *GojaEngine) run(ctx context.Context, fn func() (goja.Value, error)) (goja.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	defer close(done)
	defer e.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := fn()
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return nil, cause
			}
			return nil, context.Canceled
		}
		return nil, err
	}
	return val, nil
}
