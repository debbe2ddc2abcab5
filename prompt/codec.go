package prompt

import "strings"

var (
	encoder = strings.NewReplacer("{", "{{", "}", "}}")
	decoder = strings.NewReplacer("{{", "{", "}}", "}")
)

// Encode escapes template delimiters in v so it can be substituted into an
// f-string template and later rendered back to exactly v.
func Encode(v string) string { return encoder.Replace(v) }

// Decode reverses Encode. Unpaired braces are kept as they are.
func Decode(s string) string { return decoder.Replace(s) }
