package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/parleyhq/parley/core"
)

type weatherInput struct {
	Location string `json:"location"`
}

type weatherOutput struct {
	Forecast string `json:"forecast"`
}

var weatherSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"location": {"type": "string"}
	},
	"required": ["location"]
}`)

func weatherDef(fn func(ctx context.Context, in weatherInput) (weatherOutput, error)) Func[weatherInput, weatherOutput] {
	if fn == nil {
		fn = func(_ context.Context, in weatherInput) (weatherOutput, error) {
			return weatherOutput{Forecast: "sunny in " + in.Location}, nil
		}
	}
	return NewFunc("get_weather", "Returns the forecast for a location.", weatherSchema, fn)
}

func TestRunnerInvoke(t *testing.T) {
	r := MustRunner(weatherDef(nil))

	out, err := r.Invoke(context.Background(), `{"location":"Paris"}`)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	var decoded weatherOutput
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Forecast != "sunny in Paris" {
		t.Errorf("Forecast = %q", decoded.Forecast)
	}
}

func TestRunnerInfo(t *testing.T) {
	r := MustRunner(weatherDef(nil))

	info := r.Info()
	if info.Name != "get_weather" {
		t.Errorf("Name = %q", info.Name)
	}
	if info.Description == "" {
		t.Error("Description is empty")
	}
	if string(info.Parameters) != string(weatherSchema) {
		t.Errorf("Parameters = %s", info.Parameters)
	}
}

func TestRunnerRejectsMalformedArguments(t *testing.T) {
	r := MustRunner(weatherDef(nil))

	if _, err := r.Invoke(context.Background(), `{"location":`); !errors.Is(err, core.ErrArgumentParsing) {
		t.Errorf("Invoke() error = %v, want ErrArgumentParsing", err)
	}
}

func TestRunnerRejectsSchemaViolation(t *testing.T) {
	r := MustRunner(weatherDef(nil))

	// Valid JSON missing the required field.
	if _, err := r.Invoke(context.Background(), `{}`); !errors.Is(err, core.ErrArgumentParsing) {
		t.Errorf("Invoke() error = %v, want ErrArgumentParsing", err)
	}
}

func TestRunnerWrapsExecutionFailure(t *testing.T) {
	boom := errors.New("upstream down")
	r := MustRunner(weatherDef(func(context.Context, weatherInput) (weatherOutput, error) {
		return weatherOutput{}, boom
	}))

	_, err := r.Invoke(context.Background(), `{"location":"Paris"}`)
	if !errors.Is(err, core.ErrToolExecution) {
		t.Errorf("Invoke() error = %v, want ErrToolExecution", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Invoke() error = %v, want the cause preserved", err)
	}
}

func TestRunnerOutputSerializationFailure(t *testing.T) {
	def := NewFunc("bad_output", "Produces unserializable output.", nil,
		func(context.Context, struct{}) (chan int, error) {
			return make(chan int), nil
		})
	r := MustRunner(def)

	if _, err := r.Invoke(context.Background(), `{}`); !errors.Is(err, core.ErrOutputSerialization) {
		t.Errorf("Invoke() error = %v, want ErrOutputSerialization", err)
	}
}

func TestNewRunnerRejectsBadSchema(t *testing.T) {
	def := NewFunc("broken", "Carries an invalid schema.", json.RawMessage(`{"type":`),
		func(context.Context, struct{}) (struct{}, error) {
			return struct{}{}, nil
		})
	if _, err := NewRunner(def); err == nil {
		t.Error("NewRunner accepted an invalid schema")
	}
}

func TestRunnerWithoutSchemaSkipsValidation(t *testing.T) {
	def := NewFunc("echo", "Echoes its input.", nil,
		func(_ context.Context, in map[string]any) (map[string]any, error) {
			return in, nil
		})
	r := MustRunner(def)

	out, err := r.Invoke(context.Background(), `{"anything":"goes"}`)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != `{"anything":"goes"}` {
		t.Errorf("Invoke() = %q", out)
	}
}
