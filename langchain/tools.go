package langchain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/agentexec/tool"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/tools"
)

// toolAdapter exposes a tool.Tool to the langchaingo executor. Tool failures
// are returned as observations so the model can react to them.
type toolAdapter struct {
	tool   tool.Tool
	bridge *bridge
}

var _ tools.Tool = (*toolAdapter)(nil)

func (t *toolAdapter) Name() string { return t.tool.Name() }

func (t *toolAdapter) Description() string { return t.tool.Description() }

func (t *toolAdapter) Call(ctx context.Context, input string) (string, error) {
	t.bridge.HandleToolStart(ctx, input)

	args := map[string]any{}
	if input != "" {
		if err := json.Unmarshal([]byte(input), &args); err != nil {
			err = fmt.Errorf("failed to unmarshal args: %w", err)
			t.bridge.HandleToolError(ctx, err)
			return "error: " + err.Error(), nil
		}
	}

	_, callID := t.bridge.currentCall()
	result, err := t.tool.Call(tool.WithCallID(ctx, callID), args)
	if err != nil {
		t.bridge.HandleToolError(ctx, err)
		return "error: " + err.Error(), nil
	}

	out, err := observation(result)
	if err != nil {
		t.bridge.HandleToolError(ctx, err)
		return "error: " + err.Error(), nil
	}
	t.bridge.HandleToolEnd(ctx, out)
	return out, nil
}

func observation(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("marshal tool result: %w", err)
		}
		return string(b), nil
	}
}

func toolDefinitions(ts []tool.Tool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(ts))
	for _, t := range ts {
		params := t.Parameters()
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return defs
}
