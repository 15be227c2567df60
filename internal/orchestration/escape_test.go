package orchestration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeTemplateSyntax(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"expression opener", "a {{value}} b", "a {{ '{{' }}value}} b"},
		{"statement opener", "{% if x %}", "{{ '{%' }} if x %}"},
		{"comment opener", "{# note #}", "{{ '{#' }} note #}"},
		{"single braces untouched", "a { b } c", "a { b } c"},
		{"multiple openers", "{{a}}{{b}}", "{{ '{{' }}a}}{{ '{{' }}b}}"},
		{"adjacent braces", "{{{", "{{ '{{' }}{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeTemplateSyntax(tt.input))
		})
	}
}
