package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce     sync.Once
	strictPolicy   *bluemonday.Policy
	markdownPolicy *bluemonday.Policy
)

// Text strips every tag and returns plain text. Entities bluemonday escapes
// are decoded again since values are served as JSON, not HTML.
func Text(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(policies().strict.Sanitize(value)))
}

func TextPtr(input *string) *string {
	if input == nil {
		return nil
	}
	value := Text(*input)
	return &value
}

// Markdown keeps the small formatting subset rendered by the frontend.
func Markdown(input string) string {
	value := strings.TrimSpace(input)
	if value == "" {
		return ""
	}
	return policies().markdown.Sanitize(value)
}

func MarkdownPtr(input *string) *string {
	if input == nil {
		return nil
	}
	value := Markdown(*input)
	return &value
}

type policySet struct {
	strict   *bluemonday.Policy
	markdown *bluemonday.Policy
}

func policies() policySet {
	policyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()

		policy := bluemonday.UGCPolicy()
		policy.AllowElements("p", "pre", "code", "blockquote")
		markdownPolicy = policy
	})

	return policySet{strict: strictPolicy, markdown: markdownPolicy}
}
