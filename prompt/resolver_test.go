package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		vars        []string
		values      Values
		input       string
		wantMode    Mode
		wantBound   map[string]string
		wantMissing []string
	}{
		{
			name:     "no variables",
			vars:     nil,
			values:   Values{"topic": "cats"},
			input:    "hi",
			wantMode: ModeFreeForm,
		},
		{
			name:     "absent values",
			vars:     []string{"topic"},
			values:   nil,
			input:    "Tell me about cats",
			wantMode: ModeFreeForm,
		},
		{
			name:     "single variable empty values",
			vars:     []string{"topic"},
			values:   Values{},
			input:    "Tell me about cats",
			wantMode: ModeFreeForm,
		},
		{
			name:        "one unresolved binds raw input",
			vars:        []string{"topic", "tone"},
			values:      Values{"topic": "cats"},
			input:       "playful",
			wantMode:    ModeTemplated,
			wantBound:   map[string]string{"topic": "cats", "tone": "playful"},
			wantMissing: []string{"tone"},
		},
		{
			name:        "empty string counts as unresolved",
			vars:        []string{"topic", "tone"},
			values:      Values{"topic": "cats", "tone": ""},
			input:       "dry",
			wantMode:    ModeTemplated,
			wantBound:   map[string]string{"topic": "cats", "tone": "dry"},
			wantMissing: []string{"tone"},
		},
		{
			name:        "single variable with empty entry binds raw input",
			vars:        []string{"topic"},
			values:      Values{"topic": ""},
			input:       "Tell me about cats",
			wantMode:    ModeTemplated,
			wantBound:   map[string]string{"topic": "Tell me about cats"},
			wantMissing: []string{"topic"},
		},
		{
			name:        "present but empty map with several variables",
			vars:        []string{"topic", "tone", "length"},
			values:      Values{},
			input:       "x",
			wantMode:    ModeError,
			wantMissing: []string{"topic", "tone", "length"},
		},
		{
			name:        "missing keeps declaration order",
			vars:        []string{"c", "a", "b"},
			values:      Values{"a": "1"},
			input:       "x",
			wantMode:    ModeError,
			wantMissing: []string{"c", "b"},
		},
		{
			name:      "all bound",
			vars:      []string{"topic", "tone"},
			values:    Values{"topic": "cats", "tone": "dry"},
			input:     "ignored",
			wantMode:  ModeTemplated,
			wantBound: map[string]string{"topic": "cats", "tone": "dry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Resolve(tt.vars, tt.values, tt.input)
			assert.Equal(t, tt.wantMode, res.Mode)
			assert.Equal(t, tt.wantBound, res.Bound)
			assert.Equal(t, tt.wantMissing, res.Missing)
		})
	}
}

func TestResolve_DoesNotMutateValues(t *testing.T) {
	values := Values{"topic": "cats"}
	res := Resolve([]string{"topic", "tone"}, values, "playful")

	assert.Equal(t, ModeTemplated, res.Mode)
	assert.Equal(t, Values{"topic": "cats"}, values)

	res.Bound["topic"] = "dogs"
	assert.Equal(t, "cats", values["topic"])
}

func TestResolve_Total(t *testing.T) {
	varSets := [][]string{nil, {"a"}, {"a", "b"}, {"a", "b", "c"}}
	valueSets := []Values{nil, {}, {"a": ""}, {"a": "1"}, {"a": "1", "b": "2"}, {"z": "9"}}

	for _, vars := range varSets {
		for _, values := range valueSets {
			res := Resolve(vars, values, "raw")
			switch res.Mode {
			case ModeFreeForm:
				assert.Nil(t, res.Bound)
			case ModeTemplated:
				assert.NotNil(t, res.Bound)
				for _, v := range vars {
					assert.NotEmpty(t, res.Bound[v])
				}
			case ModeError:
				assert.GreaterOrEqual(t, len(res.Missing), 2)
			default:
				t.Fatalf("unexpected mode %v", res.Mode)
			}
		}
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "free_form", ModeFreeForm.String())
	assert.Equal(t, "templated", ModeTemplated.String())
	assert.Equal(t, "error", ModeError.String())
	assert.Equal(t, "unknown", Mode(42).String())
}
