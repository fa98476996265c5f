// Package tools defines typed tool definitions and the type-erased runner
// the middleware chain executes them through.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/parleyhq/parley/core"
)

// Definition is the contract for a tool with typed input and output. The
// input schema is the JSON Schema advertised to the remote service and used
// to validate arguments before decoding. Execute is expected to be pure
// (stateless across calls); that is not enforced.
type Definition[I, O any] interface {
	Name() string
	Description() string
	InputSchema() json.RawMessage
	Execute(ctx context.Context, input I) (O, error)
}

// Func adapts a plain function into a Definition.
type Func[I, O any] struct {
	name        string
	description string
	schema      json.RawMessage
	fn          func(ctx context.Context, input I) (O, error)
}

// NewFunc creates a Definition from a function and a hand-written input
// schema.
func NewFunc[I, O any](name, description string, schema json.RawMessage, fn func(ctx context.Context, input I) (O, error)) Func[I, O] {
	return Func[I, O]{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}

func (f Func[I, O]) Name() string                 { return f.name }
func (f Func[I, O]) Description() string          { return f.description }
func (f Func[I, O]) InputSchema() json.RawMessage { return f.schema }

func (f Func[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return f.fn(ctx, input)
}

// Runner is the type-erased bridge between a typed Definition and the
// middleware chain: it deserializes the argument string, runs the tool, and
// serializes the result.
type Runner interface {
	Name() string
	Description() string

	// Info returns the service-facing description advertised on a Chat.
	Info() core.ToolInfo

	// Invoke runs the tool against a JSON-encoded argument string and
	// returns the JSON-encoded output.
	Invoke(ctx context.Context, arguments string) (string, error)
}

type runner[I, O any] struct {
	def    Definition[I, O]
	schema *gojsonschema.Schema
}

// NewRunner wraps a Definition for the middleware chain. When the definition
// declares an input schema, arguments are validated against it before
// decoding; validation failures surface as argument-parsing errors.
func NewRunner[I, O any](def Definition[I, O]) (Runner, error) {
	r := &runner[I, O]{def: def}
	if raw := def.InputSchema(); len(raw) > 0 {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("tool %s: compiling input schema: %w", def.Name(), err)
		}
		r.schema = schema
	}
	return r, nil
}

// MustRunner is NewRunner for statically known-good schemas.
func MustRunner[I, O any](def Definition[I, O]) Runner {
	r, err := NewRunner(def)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *runner[I, O]) Name() string        { return r.def.Name() }
func (r *runner[I, O]) Description() string { return r.def.Description() }

func (r *runner[I, O]) Info() core.ToolInfo {
	return core.ToolInfo{
		Name:        r.def.Name(),
		Description: r.def.Description(),
		Parameters:  r.def.InputSchema(),
	}
}

func (r *runner[I, O]) Invoke(ctx context.Context, arguments string) (string, error) {
	if r.schema != nil {
		result, err := r.schema.Validate(gojsonschema.NewStringLoader(arguments))
		if err != nil {
			return "", fmt.Errorf("%w: tool %s: %v", core.ErrArgumentParsing, r.def.Name(), err)
		}
		if !result.Valid() {
			return "", fmt.Errorf("%w: tool %s: %v", core.ErrArgumentParsing, r.def.Name(), result.Errors())
		}
	}

	var input I
	if err := json.Unmarshal([]byte(arguments), &input); err != nil {
		return "", fmt.Errorf("%w: tool %s: %v", core.ErrArgumentParsing, r.def.Name(), err)
	}

	output, err := r.def.Execute(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: tool %s: %w", core.ErrToolExecution, r.def.Name(), err)
	}

	encoded, err := json.Marshal(output)
	if err != nil {
		return "", fmt.Errorf("%w: tool %s: %v", core.ErrOutputSerialization, r.def.Name(), err)
	}
	return string(encoded), nil
}
