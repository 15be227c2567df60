package orchestration

import "strings"

// templateEscaper neutralizes the jinja-style delimiters the templating
// module interprets, by rewriting each opener as a literal-string
// expression. Replacements are not rescanned, so the emitted openers stay
// intact.
var templateEscaper = strings.NewReplacer(
	"{{", "{{ '{{' }}",
	"{%", "{{ '{%' }}",
	"{#", "{{ '{#' }}",
)

// EscapeTemplateSyntax escapes prompt content that flows into the
// template slot, so user text containing template delimiters renders
// literally instead of being evaluated.
func EscapeTemplateSyntax(s string) string {
	return templateEscaper.Replace(s)
}
