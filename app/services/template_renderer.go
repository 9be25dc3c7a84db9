package services

import (
	"fmt"
	"regexp"
	"strings"
)

// TemplateData is the record placeholders are resolved against
type TemplateData map[string]any

var (
	placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)
	conditionalPattern = regexp.MustCompile(`(?s)\{#if\s+((?:accepted|rejected)\d+)\s*\}(.*?)\{/if\}`)
	blankLinesPattern  = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)
)

// Render replaces every {key} with data[key]. Keys that are missing or hold a
// nil value stay in the text as {key}.
func Render(template string, data TemplateData) string {
	if template == "" || len(data) == 0 {
		return template
	}
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := token[1 : len(token)-1]
		v, ok := data[key]
		if !ok || v == nil {
			return token
		}
		return stringify(v)
	})
}

// RenderConditional resolves {#if acceptedN}...{/if} and {#if rejectedN}...{/if}
// blocks, then placeholders, then drops the blank lines left behind.
func RenderConditional(template string, data TemplateData) string {
	out := conditionalPattern.ReplaceAllStringFunc(template, func(block string) string {
		m := conditionalPattern.FindStringSubmatch(block)
		if _, ok := data[m[1]]; !ok {
			return ""
		}
		return Render(m[2], data)
	})
	out = Render(out, data)
	out = blankLinesPattern.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// MergeData shallow merges sources left to right, later sources win
func MergeData(sources ...map[string]any) TemplateData {
	size := 0
	for _, s := range sources {
		size += len(s)
	}
	out := make(TemplateData, size)
	for _, s := range sources {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
