package llm

import (
	"regexp"
	"strconv"
	"strings"
)

// Model output is loose prose even when we ask for strict formats, so all
// parsing here is fail-soft: lines that don't match are skipped, not fatal.

var (
	planLineRe   = regexp.MustCompile(`(?:\d+\.\s*)?(\d{2}):(\d{2})\s*[-—–]\s*(.+)`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[•*-]|\d+\.)\s*(.+)$`)
	importanceRe = regexp.MustCompile(`\[\s*[Ii]mportance:?\s*(\d+)\s*\]\s*$`)
	turnRe       = regexp.MustCompile(`^\s*\*{0,2}([^:*]+?)\*{0,2}\s*:\s*(.+)$`)
)

// PlanEntry is one parsed schedule line.
type PlanEntry struct {
	StartMinute int // minute of day
	Title       string
}

// ParsePlanLines extracts schedule entries from a model completion. known
// maps lowercase activity titles to their canonical form; lines with
// unrecognized titles or out-of-range times are dropped.
func ParsePlanLines(text string, known map[string]string) []PlanEntry {
	var entries []PlanEntry
	for _, line := range strings.Split(text, "\n") {
		m := planLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			continue
		}
		title := strings.TrimSpace(strings.Trim(strings.TrimSpace(m[3]), "*."))
		canonical, ok := known[strings.ToLower(title)]
		if !ok {
			continue
		}
		entries = append(entries, PlanEntry{
			StartMinute: hour*60 + minute,
			Title:       canonical,
		})
	}
	return entries
}

// Insight is one parsed reflection with its self-assessed importance.
type Insight struct {
	Text       string
	Importance int
}

// ParseReflection extracts insights from a reflection completion. Bullet
// markers are stripped; a trailing [Importance: N] tag sets importance,
// clamped to 1..5, defaulting to 1 when absent or unreadable.
func ParseReflection(text string) []Insight {
	var insights []Insight
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := bulletRe.FindStringSubmatch(line); m != nil {
			line = strings.TrimSpace(m[1])
		}
		importance := 1
		if m := importanceRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				importance = clamp(n, 1, 5)
			}
			line = strings.TrimSpace(importanceRe.ReplaceAllString(line, ""))
		}
		if line == "" {
			continue
		}
		insights = append(insights, Insight{Text: line, Importance: importance})
	}
	return insights
}

// Turn is one speaker's utterance in a parsed transcript.
type Turn struct {
	Speaker string
	Text    string
}

// ParseTranscript extracts alternating turns from a dialogue completion.
// Only the two named participants are accepted as speakers. Lines that
// don't open a new turn are folded into the previous speaker's utterance,
// so multi-line utterances survive. Markdown bold around names is stripped.
func ParseTranscript(text, nameA, nameB string) []Turn {
	valid := map[string]string{
		strings.ToLower(nameA): nameA,
		strings.ToLower(nameB): nameB,
	}
	var turns []Turn
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := turnRe.FindStringSubmatch(line); m != nil {
			speaker := strings.TrimSpace(m[1])
			if canonical, ok := valid[strings.ToLower(speaker)]; ok {
				turns = append(turns, Turn{Speaker: canonical, Text: strings.TrimSpace(m[2])})
				continue
			}
		}
		if len(turns) > 0 {
			turns[len(turns)-1].Text += " " + line
		}
	}
	return turns
}

// ParseYesNo reads a yes/no gate answer, defaulting to no.
func ParseYesNo(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), "yes")
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
