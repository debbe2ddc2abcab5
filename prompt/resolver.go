package prompt

// Values maps template variable names to caller supplied raw values.
// A nil Values means the caller supplied no map at all.
type Values map[string]string

// Mode is the invocation shape selected by Resolve.
type Mode int

const (
	// ModeFreeForm passes the raw input straight to the agent.
	ModeFreeForm Mode = iota
	// ModeTemplated invokes the agent with a bound variable map.
	ModeTemplated
	// ModeError refuses to invoke because several variables are unbound.
	ModeError
)

// String returns the name used in logs and metrics labels.
func (m Mode) String() string {
	switch m {
	case ModeFreeForm:
		return "free_form"
	case ModeTemplated:
		return "templated"
	case ModeError:
		return "error"
	default:
		return "unknown"
	}
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	Mode Mode
	// Bound is set for ModeTemplated only. It is always a fresh map.
	Bound map[string]string
	// Missing lists unresolved variables in declaration order. For
	// ModeTemplated it holds the single variable filled from the raw input.
	Missing []string
}

// Resolve applies the missing-variable policy to the declared template
// variables:
//
//   - no declared variables, or values == nil: free-form
//   - two or more unresolved: error, listing them in order
//   - exactly one unresolved: templated with the raw input bound to it, unless
//     values has no entries at all, in which case free-form
//   - none unresolved: templated with values as given
//
// A variable is unresolved when values has no entry for it or the entry is empty.
func Resolve(vars []string, values Values, rawInput string) Resolution {
	if len(vars) == 0 || values == nil {
		return Resolution{Mode: ModeFreeForm}
	}

	var missing []string
	for _, v := range vars {
		if values[v] == "" {
			missing = append(missing, v)
		}
	}

	switch {
	case len(missing) >= 2:
		return Resolution{Mode: ModeError, Missing: missing}
	case len(missing) == 1:
		if len(values) == 0 {
			return Resolution{Mode: ModeFreeForm}
		}
		bound := values.clone()
		bound[missing[0]] = rawInput
		return Resolution{Mode: ModeTemplated, Bound: bound, Missing: missing}
	default:
		return Resolution{Mode: ModeTemplated, Bound: values.clone()}
	}
}

func (v Values) clone() map[string]string {
	out := make(map[string]string, len(v)+1)
	for k, val := range v {
		out[k] = val
	}
	return out
}
