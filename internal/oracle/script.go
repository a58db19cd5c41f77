package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const scriptFuncName = "Infer"

// ScriptClient answers inference calls by evaluating a Go script with yaegi.
// The script is a main package that defines
//
//	func Infer(stage string, data map[string]any) (any, error)
//
// and receives the request Data round-tripped through JSON, so keys follow the
// artifact json tags. It is meant for offline demos and deterministic tests.
type ScriptClient struct {
	path string

	mu sync.Mutex
	fn reflect.Value
}

// LoadScript interprets the script at path and resolves its Infer function.
func LoadScript(path string) (*ScriptClient, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("oracle: script path is required")
	}
	code, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, fmt.Errorf("oracle: read %s: %w", trimmed, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("oracle: %s is empty", trimmed)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("oracle: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(trimmed); err != nil {
		return nil, fmt.Errorf("oracle: interpret %s: %w", trimmed, err)
	}
	fn, err := i.Eval(scriptFuncName)
	if err != nil {
		return nil, fmt.Errorf("oracle: %s must define %s(stage string, data map[string]any) (any, error): %w", trimmed, scriptFuncName, err)
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("oracle: %s: %s is not a function", trimmed, scriptFuncName)
	}
	if fn.Type().NumIn() != 2 || fn.Type().NumOut() != 2 {
		return nil, fmt.Errorf("oracle: %s: %s must take (string, map[string]any) and return (any, error)", trimmed, scriptFuncName)
	}
	return &ScriptClient{path: trimmed, fn: fn}, nil
}

// Path reports the script location.
func (c *ScriptClient) Path() string {
	return c.path
}

// Infer calls the script. The interpreter is not safe for concurrent use, so
// calls are serialized.
func (c *ScriptClient) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(req.Stage, err)
	}
	data, err := toMap(req.Data)
	if err != nil {
		return nil, Transport(req.Stage, fmt.Errorf("encode script input: %w", err))
	}

	c.mu.Lock()
	out, callErr := c.call(req.Stage, data)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, Classify(req.Stage, err)
	}
	if callErr != nil {
		return nil, Transport(req.Stage, callErr)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, Validation(req.Stage, fmt.Errorf("encode script result: %w", err))
	}
	return raw, nil
}

func (c *ScriptClient) call(stage string, data map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panic: %v", r)
		}
	}()
	results := c.fn.Call([]reflect.Value{reflect.ValueOf(stage), reflect.ValueOf(data)})
	if len(results) != 2 {
		return nil, fmt.Errorf("%s must return (any, error)", scriptFuncName)
	}
	if errVal := results[1]; errVal.IsValid() && !errVal.IsNil() {
		if e, ok := errVal.Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", scriptFuncName)
	}
	if !results[0].IsValid() {
		return nil, nil
	}
	return results[0].Interface(), nil
}

func toMap(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
