package prompt

import "strings"

// FormatResponse turns the text field of a templated result into display
// text. Only bound values are escaped by the template layer, so the model's
// answer keeps its braces; surrounding whitespace is trimmed.
func FormatResponse(raw string) string { return strings.TrimSpace(raw) }
