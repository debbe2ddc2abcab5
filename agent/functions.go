package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/tool"
)

// executeFunctions runs a batch of function calls and returns one response
// per call in the original order. Failures become error responses so that
// the model can react to them. Events of parallel calls are delivered one at
// a time, so observers never run concurrently.
func (a *FunctionAgent) executeFunctions(ctx context.Context, tools map[string]tool.Tool, calls []core.FunctionCall, cb *callback.Pipeline) []core.FunctionResponse {
	n := len(calls)
	results := make([]core.FunctionResponse, n)

	maxPar := a.maxParallelTools
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	if maxPar == 1 {
		for i, fc := range calls {
			results[i] = a.executeSingle(ctx, tools, fc, cb.Emit)
		}
		return results
	}

	var mu sync.Mutex
	emit := func(ctx context.Context, ev callback.Event) {
		mu.Lock()
		defer mu.Unlock()
		cb.Emit(ctx, ev)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = a.executeSingle(ctx, tools, fc, emit)
		}(i, calls[i])
	}
	wg.Wait()
	return results
}

func (a *FunctionAgent) executeSingle(ctx context.Context, tools map[string]tool.Tool, fc core.FunctionCall, emit func(context.Context, callback.Event)) core.FunctionResponse {
	start := time.Now()
	emit(ctx, callback.Event{Type: callback.EventToolStart, Name: fc.Name, Input: fc.Arguments, ToolCallID: fc.ID})

	toolCtx := tool.WithCallID(ctx, fc.ID)
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(toolCtx, a.toolTimeout)
		defer cancel()
	}

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				a.logger.Error("agent.function.panic", "agent", a.name, "function", fc.Name, "recover", r)
			}
		}()
		result, err = executeTool(toolCtx, tools, fc.Name, fc.Arguments)
	}()
	dur := time.Since(start)

	a.logger.Info(
		"agent.function.executed",
		"agent", a.name,
		"function", fc.Name,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	resp := core.FunctionResponse{ID: fc.ID, Name: fc.Name}
	if err != nil {
		resp.Error = err.Error()
		emit(ctx, callback.Event{Type: callback.EventToolError, Name: fc.Name, ToolCallID: fc.ID, Err: err, Duration: dur})
		return resp
	}
	resp.Response = result
	emit(ctx, callback.Event{Type: callback.EventToolEnd, Name: fc.Name, ToolCallID: fc.ID, Output: outputString(result), Duration: dur})
	return resp
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }

var errToolNotFound = errors.New("tool not found")

func executeTool(ctx context.Context, tools map[string]tool.Tool, name, args string) (any, error) {
	impl, ok := tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errToolNotFound, name)
	}

	var argMap map[string]any
	if args == "" {
		argMap = map[string]any{}
	} else if err := json.Unmarshal([]byte(args), &argMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return impl.Call(ctx, argMap)
}

func outputString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
