package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     TemplateData
		expected string
	}{
		{
			name:     "replaces known keys",
			template: "Hello {name}, you have {seats} seats",
			data:     TemplateData{"name": "Asha", "seats": 2},
			expected: "Hello Asha, you have 2 seats",
		},
		{
			name:     "unknown keys stay verbatim",
			template: "Hello {name}, see you at {venue}",
			data:     TemplateData{"name": "Asha"},
			expected: "Hello Asha, see you at {venue}",
		},
		{
			name:     "empty data is identity",
			template: "{a} {b} {c}",
			data:     TemplateData{},
			expected: "{a} {b} {c}",
		},
		{
			name:     "nil value stays verbatim",
			template: "{a}",
			data:     TemplateData{"a": nil},
			expected: "{a}",
		},
		{
			name:     "empty string value replaces",
			template: "[{a}]",
			data:     TemplateData{"a": ""},
			expected: "[]",
		},
		{
			name:     "non word tokens untouched",
			template: "{not a key} {#if accepted1}",
			data:     TemplateData{"accepted1": "x"},
			expected: "{not a key} {#if accepted1}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.template, tt.data))
		})
	}
}

func TestRenderConditional(t *testing.T) {
	template := "Dear {name}\n{#if accepted1}Day 1: {accepted1} guests\n{/if}{#if rejected1}Day 1: declined\n{/if}{#if accepted2}Day 2: {accepted2} guests\n{/if}{#if rejected2}Day 2: declined\n{/if}\nThanks"

	t.Run("emits only defined blocks", func(t *testing.T) {
		out := RenderConditional(template, TemplateData{"name": "Ravi", "accepted1": "1", "rejected2": "0"})
		assert.Equal(t, "Dear Ravi\nDay 1: 1 guests\nDay 2: declined\nThanks", out)
	})

	t.Run("drops every block when no flags", func(t *testing.T) {
		out := RenderConditional(template, TemplateData{"name": "Ravi"})
		assert.Equal(t, "Dear Ravi\nThanks", out)
	})

	t.Run("unbalanced directive passes through", func(t *testing.T) {
		out := RenderConditional("{#if accepted1} hi {name}", TemplateData{"name": "Ravi", "accepted1": "1"})
		assert.Equal(t, "{#if accepted1} hi Ravi", out)
	})

	t.Run("other flag names are not directives", func(t *testing.T) {
		out := RenderConditional("{#if vip}x{/if}", TemplateData{"vip": "1"})
		assert.Equal(t, "{#if vip}x{/if}", out)
	})
}

func TestMergeData(t *testing.T) {
	contact := map[string]any{"name": "Asha", "number": "919999"}
	day := map[string]any{"invitesAllocated": "2"}
	subEvent := map[string]any{"name": "Sangeet"}
	extra := map[string]any{"invitesAllocated": "3"}

	merged := MergeData(contact, day, subEvent, extra)
	assert.Equal(t, "Sangeet", merged["name"])
	assert.Equal(t, "3", merged["invitesAllocated"])
	assert.Equal(t, "919999", merged["number"])

	merged["name"] = "changed"
	assert.Equal(t, "Asha", contact["name"])
}
