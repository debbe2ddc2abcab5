package langchain

import (
	"context"
	"strings"

	"github.com/hupe1980/agentexec/memory"
	"github.com/hupe1980/agentexec/prompt"
	"github.com/tmc/langchaingo/agents"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/tools"
)

const (
	inputKey  = "input"
	outputKey = "output"
)

// planner is a function calling agents.Agent. History comes from the
// conversation memory and each completed step is replayed as an assistant
// tool call followed by the tool response.
type planner struct {
	llm      llms.Model
	tmpl     prompt.Template
	data     map[string]string
	memory   memory.Conversation
	tools    []tools.Tool
	defs     []llms.Tool
	bridge   *bridge
	callOpts []llms.CallOption

	// streamed collects text forwarded as tokens during tool-calling turns.
	streamed strings.Builder
}

var _ agents.Agent = (*planner)(nil)

func (p *planner) Plan(ctx context.Context, steps []schema.AgentStep, inputs map[string]string) ([]schema.AgentAction, *schema.AgentFinish, error) {
	msgs, err := p.messages(ctx, steps, inputs[inputKey])
	if err != nil {
		return nil, nil, err
	}

	opts := append([]llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			p.bridge.HandleStreamingFunc(ctx, chunk)
			return nil
		}),
	}, p.callOpts...)
	if len(p.defs) > 0 {
		opts = append(opts, llms.WithTools(p.defs))
	}

	p.bridge.HandleLLMGenerateContentStart(ctx, msgs)
	resp, err := p.llm.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		p.bridge.HandleLLMError(ctx, err)
		return nil, nil, err
	}
	if len(resp.Choices) == 0 {
		err = agents.ErrAgentNoReturn
		p.bridge.HandleLLMError(ctx, err)
		return nil, nil, err
	}
	p.bridge.HandleLLMGenerateContentEnd(ctx, resp)

	choice := resp.Choices[0]
	if len(choice.ToolCalls) > 0 {
		actions := make([]schema.AgentAction, 0, len(choice.ToolCalls))
		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			actions = append(actions, schema.AgentAction{
				Tool:      tc.FunctionCall.Name,
				ToolInput: tc.FunctionCall.Arguments,
				ToolID:    tc.ID,
				Log:       choice.Content,
			})
		}
		if len(actions) > 0 {
			if p.bridge.didStream() {
				p.streamed.WriteString(choice.Content)
			}
			return actions, nil, nil
		}
	}

	if !p.bridge.didStream() && choice.Content != "" {
		p.bridge.HandleStreamingFunc(ctx, []byte(choice.Content))
	}
	answer := p.streamed.String() + choice.Content
	return nil, &schema.AgentFinish{
		ReturnValues: map[string]any{outputKey: answer},
		Log:          answer,
	}, nil
}

func (p *planner) GetInputKeys() []string { return []string{inputKey} }

func (p *planner) GetOutputKeys() []string { return []string{outputKey} }

func (p *planner) GetTools() []tools.Tool { return p.tools }

func (p *planner) messages(ctx context.Context, steps []schema.AgentStep, input string) ([]llms.MessageContent, error) {
	data := make(map[string]any, len(p.data)+1)
	for k, v := range p.data {
		data[k] = v
	}
	if _, ok := data[inputKey]; !ok {
		data[inputKey] = input
	}
	system, err := p.tmpl.RenderPreamble(data)
	if err != nil {
		return nil, err
	}

	var history []llms.MessageContent
	if p.memory != nil {
		v, err := p.memory.Load(ctx)
		if err != nil {
			return nil, err
		}
		switch h := v.(type) {
		case []llms.ChatMessage:
			for _, m := range h {
				switch m.GetType() {
				case llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI, llms.ChatMessageTypeSystem:
					history = append(history, llms.TextParts(m.GetType(), m.GetContent()))
				case llms.ChatMessageTypeGeneric:
					history = append(history, llms.TextParts(llms.ChatMessageTypeHuman, m.GetContent()))
				}
			}
		case string:
			if h != "" {
				system = strings.TrimSpace(system + "\n\nConversation so far:\n" + h)
			}
		}
	}

	msgs := make([]llms.MessageContent, 0, len(history)+2+2*len(steps))
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	msgs = append(msgs, history...)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, input))

	for _, step := range steps {
		msgs = append(msgs,
			llms.MessageContent{
				Role: llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.ToolCall{
					ID:   step.Action.ToolID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      step.Action.Tool,
						Arguments: step.Action.ToolInput,
					},
				}},
			},
			llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: step.Action.ToolID,
					Name:       step.Action.Tool,
					Content:    step.Observation,
				}},
			},
		)
	}
	return msgs, nil
}
