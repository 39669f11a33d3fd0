package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes every tag and attribute.
	StrictPolicy = bluemonday.StrictPolicy()

	// UGCPolicy keeps basic formatting (<p>, <b>, <a>, lists) and drops scripts,
	// frames, styles and event handlers.
	UGCPolicy = bluemonday.UGCPolicy()
)

// Text strips all HTML. Use for names, free-text messages and short descriptors.
// The result is plain text: characters such as ' and & come back unescaped.
func Text(input string) string {
	return strings.TrimSpace(html.UnescapeString(StrictPolicy.Sanitize(input)))
}

// HTML sanitizes rich text such as event introductions and descriptions.
// Input the policy leaves intact is returned as written; otherwise the
// cleaned markup is returned.
func HTML(input string) string {
	input = strings.TrimSpace(input)
	cleaned := strings.TrimSpace(UGCPolicy.Sanitize(input))
	if html.UnescapeString(cleaned) == html.UnescapeString(input) {
		return input
	}
	return cleaned
}

// TextSlice applies Text to each element, preserving nil.
func TextSlice(inputs []string) []string {
	if inputs == nil {
		return nil
	}
	sanitized := make([]string, len(inputs))
	for i, input := range inputs {
		sanitized[i] = Text(input)
	}
	return sanitized
}

// TextPtr applies Text through a pointer, preserving nil.
func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	value := Text(*input)
	return &value
}
