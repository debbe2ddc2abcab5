// Package prompt contains the template side of an agent invocation: the
// escape codec that protects bound values from being read as template
// syntax, the variable resolver that decides between free-form and templated
// invocation, the Template type (system preamble + human message) and the
// response formatter applied to templated results.
//
// Human templates use f-string syntax ("Tell me about {topic}"); a literal
// brace is written doubled ("{{" or "}}"). Preambles use Go text/template
// syntax with the sprig function map.
package prompt
