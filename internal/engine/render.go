package engine

import (
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Render replaces {{key}} with subs[key]. Keys without a value stay literal.
func Render(message string, subs map[string]string) string {
	if len(subs) == 0 || !strings.Contains(message, "{{") {
		return message
	}
	return placeholder.ReplaceAllStringFunc(message, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		if v, ok := subs[key]; ok {
			return v
		}
		return m
	})
}
