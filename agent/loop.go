package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentexec/callback"
	"github.com/hupe1980/agentexec/core"
	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/model"
	"github.com/tmc/langchaingo/llms"
)

type runResult struct {
	text       string
	iterations int
}

// run executes the model/tool loop for one user input.
func (a *FunctionAgent) run(ctx context.Context, input string, data map[string]any, cb *callback.Pipeline) (runResult, error) {
	start := time.Now()
	cb.Emit(ctx, callback.Event{Type: callback.EventChainStart, Name: a.name, Input: input})

	fail := func(err error) (runResult, error) {
		cb.Emit(ctx, callback.Event{Type: callback.EventChainError, Name: a.name, Input: input, Err: err, Duration: time.Since(start)})
		a.logger.Error("agent.run.error", "agent", a.name, "run_id", cb.RunID(), "error", err.Error())
		return runResult{}, err
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["input"]; !ok {
		data["input"] = input
	}

	instructions, err := a.instruction.Resolve(ctx, data)
	if err != nil {
		return fail(fmt.Errorf("resolve instruction: %w", err))
	}

	mem := a.Memory()
	history, flattened, err := a.loadHistory(ctx, mem)
	if err != nil {
		return fail(err)
	}
	if flattened != "" {
		instructions = strings.TrimSpace(instructions + "\n\nConversation so far:\n" + flattened)
	}

	contents := append(history, core.NewTextContent(string(core.RoleUser), input))
	tools := a.snapshotTools()
	defs := a.toolDefinitions(tools)

	// Text streamed during tool-calling turns has already reached the
	// observers, so it stays part of the answer.
	var streamedPrefix strings.Builder

	for iter := 1; iter <= a.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		final, streamed, err := a.generate(ctx, model.Request{
			Instructions: instructions,
			Contents:     contents,
			Tools:        defs,
			Stream:       a.enableStreaming,
		}, cb)
		if err != nil {
			return fail(err)
		}

		calls := final.FunctionCalls()
		if len(calls) == 0 {
			answer := streamedPrefix.String() + final.Text()
			cb.Emit(ctx, callback.Event{Type: callback.EventAgentFinish, Name: a.name, Output: answer})
			if mem != nil {
				if err := mem.Save(ctx, input, answer); err != nil {
					return fail(err)
				}
			}
			cb.Emit(ctx, callback.Event{Type: callback.EventChainEnd, Name: a.name, Input: input, Output: answer, Duration: time.Since(start)})
			a.logger.Debug("agent.run.complete", "agent", a.name, "run_id", cb.RunID(), "iterations", iter, "duration_ms", time.Since(start).Milliseconds())
			return runResult{text: answer, iterations: iter}, nil
		}

		if streamed {
			streamedPrefix.WriteString(final.Text())
		}
		final.Role = string(core.RoleAssistant)
		contents = append(contents, final)

		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = core.NewID()
			}
			cb.Emit(ctx, callback.Event{
				Type:       callback.EventAgentAction,
				Name:       calls[i].Name,
				Input:      calls[i].Arguments,
				ToolCallID: calls[i].ID,
			})
		}

		responses := a.executeFunctions(ctx, tools, calls, cb)
		parts := make([]core.Part, 0, len(responses))
		for _, r := range responses {
			parts = append(parts, core.FunctionResponsePart{FunctionResponse: r})
		}
		contents = append(contents, core.Content{Role: "tool", Parts: parts})
	}

	return fail(fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIterations))
}

// generate runs one model turn, forwarding partial text as token events. It
// reports whether any partial text was forwarded.
func (a *FunctionAgent) generate(ctx context.Context, req model.Request, cb *callback.Pipeline) (core.Content, bool, error) {
	info := a.llm.Info()
	start := time.Now()
	cb.Emit(ctx, callback.Event{Type: callback.EventLLMStart, Name: info.Name, Metadata: map[string]any{"provider": info.Provider}})

	respCh, errCh := a.llm.Generate(ctx, req)

	var (
		final    *model.Response
		streamed bool
	)
	for resp := range respCh {
		if resp.Partial {
			if tok := resp.Content.Text(); tok != "" {
				streamed = true
				cb.Emit(ctx, callback.Event{Type: callback.EventToken, Name: info.Name, Token: tok})
			}
			continue
		}
		r := resp
		final = &r
	}

	var err error
	if e, ok := <-errCh; ok && e != nil {
		err = e
	}
	if err == nil && final == nil {
		err = fmt.Errorf("model %s returned no final response", info.Name)
	}
	if err != nil {
		cb.Emit(ctx, callback.Event{Type: callback.EventLLMError, Name: info.Name, Err: err, Duration: time.Since(start)})
		return core.Content{}, false, err
	}

	if !streamed && len(final.Content.FunctionCalls()) == 0 {
		if text := final.Content.Text(); text != "" {
			cb.Emit(ctx, callback.Event{Type: callback.EventToken, Name: info.Name, Token: text})
		}
	}

	meta := map[string]any{"finish_reason": final.FinishReason}
	if final.Usage != nil {
		meta["prompt_tokens"] = final.Usage.PromptTokens
		meta["completion_tokens"] = final.Usage.CompletionTokens
		meta["total_tokens"] = final.Usage.TotalTokens
	}
	cb.Emit(ctx, callback.Event{
		Type:     callback.EventLLMEnd,
		Name:     info.Name,
		Output:   final.Content.Text(),
		Duration: time.Since(start),
		Metadata: meta,
	})
	return final.Content, streamed, nil
}

// loadHistory returns the stored conversation either as contents
// (structured output) or as a flattened transcript.
func (a *FunctionAgent) loadHistory(ctx context.Context, mem memory.Conversation) ([]core.Content, string, error) {
	if mem == nil {
		return nil, "", nil
	}
	v, err := mem.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load memory: %w", err)
	}
	switch h := v.(type) {
	case []llms.ChatMessage:
		turns := memory.MessagesToTurns(h)
		if a.maxHistoryMessages > 0 && len(turns) > a.maxHistoryMessages {
			turns = turns[len(turns)-a.maxHistoryMessages:]
		}
		contents := make([]core.Content, 0, len(turns))
		for _, t := range turns {
			contents = append(contents, t.Content())
		}
		return contents, "", nil
	case string:
		return nil, h, nil
	default:
		return nil, "", nil
	}
}
