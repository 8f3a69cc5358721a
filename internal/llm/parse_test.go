package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownTitles = map[string]string{
	"work":     "Work",
	"eat":      "Eat",
	"sleep":    "Sleep",
	"watch tv": "Watch TV",
}

func TestParsePlanLines(t *testing.T) {
	text := "Here is my plan:\n" +
		"1. 08:00 - Work\n" +
		"09:30 — eat\n" +
		"10:00 - Skydiving\n" +
		"25:00 - Work\n" +
		"12:15 - **Watch TV**\n" +
		"random commentary line\n"

	entries := ParsePlanLines(text, knownTitles)
	require.Len(t, entries, 3)
	assert.Equal(t, PlanEntry{StartMinute: 480, Title: "Work"}, entries[0])
	assert.Equal(t, PlanEntry{StartMinute: 570, Title: "Eat"}, entries[1])
	assert.Equal(t, PlanEntry{StartMinute: 735, Title: "Watch TV"}, entries[2])
}

func TestParsePlanLinesEmpty(t *testing.T) {
	assert.Empty(t, ParsePlanLines("no schedule here", knownTitles))
}

func TestParseReflection(t *testing.T) {
	text := "- I work better before lunch [Importance: 3]\n" +
		"* Sam seems stressed lately [Importance: 9]\n" +
		"\n" +
		"3. The coffee machine is unreliable\n" +
		"I should take more breaks [importance: 2]\n"

	insights := ParseReflection(text)
	require.Len(t, insights, 4)
	assert.Equal(t, Insight{Text: "I work better before lunch", Importance: 3}, insights[0])
	assert.Equal(t, Insight{Text: "Sam seems stressed lately", Importance: 5}, insights[1])
	assert.Equal(t, Insight{Text: "The coffee machine is unreliable", Importance: 1}, insights[2])
	assert.Equal(t, Insight{Text: "I should take more breaks", Importance: 2}, insights[3])
}

func TestParseTranscript(t *testing.T) {
	text := "**Ada**: Morning! Did you see the memo?\n" +
		"Sam: I did.\n" +
		"It was strange.\n" +
		"Narrator: they both paused\n" +
		"ada: Very strange.\n"

	turns := ParseTranscript(text, "Ada", "Sam")
	require.Len(t, turns, 3)
	assert.Equal(t, Turn{Speaker: "Ada", Text: "Morning! Did you see the memo?"}, turns[0])
	assert.Equal(t, "Sam", turns[1].Speaker)
	assert.Equal(t, "I did. It was strange. Narrator: they both paused", turns[1].Text)
	assert.Equal(t, Turn{Speaker: "Ada", Text: "Very strange."}, turns[2])
}

func TestParseTranscriptLeadingJunkDropped(t *testing.T) {
	turns := ParseTranscript("they met in the lounge\nAda: hi", "Ada", "Sam")
	require.Len(t, turns, 1)
	assert.Equal(t, "Ada", turns[0].Speaker)
}

func TestParseYesNo(t *testing.T) {
	assert.True(t, ParseYesNo("Yes, definitely."))
	assert.True(t, ParseYesNo("  yes"))
	assert.False(t, ParseYesNo("No."))
	assert.False(t, ParseYesNo("maybe"))
	assert.False(t, ParseYesNo(""))
}

func TestFormatTraits(t *testing.T) {
	assert.Equal(t, "unremarkable", FormatTraits(nil))
	assert.Equal(t, "curious", FormatTraits([]string{"curious"}))
	assert.Equal(t, "curious and tidy", FormatTraits([]string{"curious", "tidy"}))
	assert.Equal(t, "curious, tidy and blunt", FormatTraits([]string{"curious", "tidy", "blunt"}))
}
