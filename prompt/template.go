package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentexec/internal/util"
	"github.com/tmc/langchaingo/prompts"
)

var (
	// ErrDuplicateVariable is returned when a template declares a variable twice.
	ErrDuplicateVariable = errors.New("duplicate template variable")
	// ErrUnclosedPlaceholder is returned for a '{' without a matching '}'.
	ErrUnclosedPlaceholder = errors.New("unclosed template placeholder")
)

// Template is the prompt configuration attached to an agent: an ordered set of
// variables, a system preamble and the human message template.
type Template struct {
	// Variables are the placeholders that must be bound for templated
	// invocation, in declaration order.
	Variables []string
	// Preamble seeds the agent's behaviour (system message). Go template syntax.
	Preamble string
	// Human is the f-string rendered from the bound variables.
	Human string
}

// NewTemplate derives the variable list from the human template in order of
// first appearance.
func NewTemplate(preamble, human string) (Template, error) {
	vars, err := ExtractVariables(human)
	if err != nil {
		return Template{}, err
	}
	return Template{Variables: vars, Preamble: preamble, Human: human}, nil
}

// Validate checks that variable names are non-empty and unique.
func (t Template) Validate() error {
	seen := make(map[string]struct{}, len(t.Variables))
	for _, v := range t.Variables {
		if v == "" {
			return fmt.Errorf("template variable must not be empty")
		}
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateVariable, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// HumanTemplate returns Human, or one placeholder line per variable when
// Human is empty.
func (t Template) HumanTemplate() string {
	if t.Human != "" || len(t.Variables) == 0 {
		return t.Human
	}
	lines := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		lines[i] = "{" + v + "}"
	}
	return strings.Join(lines, "\n")
}

// Bind substitutes the given values into the human template. Values are
// encoded, template escapes and unknown placeholders are kept, so the result
// is still a valid f-string.
func (t Template) Bind(values map[string]string) (string, error) {
	src := t.HumanTemplate()
	var sb strings.Builder
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case (c == '{' || c == '}') && i+1 < len(src) && src[i+1] == c:
			sb.WriteByte(c)
			sb.WriteByte(c)
			i++
		case c == '{':
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w at offset %d", ErrUnclosedPlaceholder, i)
			}
			raw := src[i : i+end+2]
			name := strings.TrimSpace(raw[1 : len(raw)-1])
			if v, ok := values[name]; ok {
				sb.WriteString(Encode(v))
			} else {
				sb.WriteString(raw)
			}
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// RenderHuman binds values and renders the final human message. Every
// variable referenced by the template must be present in values.
func (t Template) RenderHuman(values map[string]string) (string, error) {
	bound, err := t.Bind(values)
	if err != nil {
		return "", err
	}
	out, err := prompts.RenderTemplate(bound, prompts.TemplateFormatFString, map[string]any{})
	if err != nil {
		return "", fmt.Errorf("render human template: %w", err)
	}
	return out, nil
}

// RenderPreamble renders the system preamble with data available to the
// template (typically the bound variables).
func (t Template) RenderPreamble(data map[string]any) (string, error) {
	out, err := util.RenderTemplate(t.Preamble, data)
	if err != nil {
		return "", fmt.Errorf("render preamble: %w", err)
	}
	return out, nil
}

// ExtractVariables lists the f-string placeholders of s in order of first
// appearance.
func ExtractVariables(s string) ([]string, error) {
	var vars []string
	seen := map[string]struct{}{}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c == '{' || c == '}') && i+1 < len(s) && s[i+1] == c {
			i++
			continue
		}
		if c != '{' {
			continue
		}
		end := strings.IndexByte(s[i+1:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w at offset %d", ErrUnclosedPlaceholder, i)
		}
		name := strings.TrimSpace(s[i+1 : i+1+end])
		if _, ok := seen[name]; !ok && name != "" {
			seen[name] = struct{}{}
			vars = append(vars, name)
		}
		i += end + 1
	}
	return vars, nil
}
