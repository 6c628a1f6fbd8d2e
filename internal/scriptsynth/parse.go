package scriptsynth

import (
	"regexp"
	"strings"

	"github.com/pagecast/pagecast/internal/apierr"
)

// dialogueLinePattern matches a labeled dialogue line: spec.md §4.4
// `^(Speaker\s*[12]|Alex|Jordan|A|B)\s*:\s*(.+)$`, case-insensitive.
var dialogueLinePattern = regexp.MustCompile(`(?i)^\s*(speaker\s*[12]|alex|jordan|a|b)\s*:\s*(.+)$`)

// canonicalSpeaker maps every recognized label spelling to the canonical
// "Speaker 1" / "Speaker 2" pair (spec.md §4.4).
func canonicalSpeaker(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "speaker1", "speaker 1", "alex", "a", "speaker a":
		return "Speaker 1"
	case "speaker2", "speaker 2", "jordan", "b", "speaker b":
		return "Speaker 2"
	default:
		return ""
	}
}

// normalizeLabelKey collapses internal whitespace so "Speaker  1" and
// "Speaker1" both match canonicalLabelFromMatch's switch.
func normalizeLabelKey(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "")
}

// ParseDialogue scans raw LLM output line-by-line and builds the ordered
// Line sequence for a Dialogue script. Unmatched non-empty lines are
// appended to the previous line as a continuation, or discarded if no
// line has been established yet. Fails with apierr.CodeMalformedScript if
// fewer than two distinct canonical speakers appear.
func ParseDialogue(raw string) ([]Line, error) {
	var lines []Line
	distinct := make(map[string]bool)

	for _, rawLine := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(rawLine)
		if trimmed == "" {
			continue
		}

		if m := dialogueLinePattern.FindStringSubmatch(trimmed); m != nil {
			label := canonicalLabelFromMatch(m[1])
			if label == "" {
				// Regex matched but the label text didn't resolve to a
				// canonical speaker (shouldn't happen given the pattern);
				// treat as a continuation instead of dropping silently.
				appendContinuation(&lines, trimmed)
				continue
			}
			lines = append(lines, Line{Speaker: label, Text: strings.TrimSpace(m[2])})
			distinct[label] = true
			continue
		}

		appendContinuation(&lines, trimmed)
	}

	if len(distinct) < 2 {
		return nil, apierr.New(apierr.CodeMalformedScript, "dialogue script did not contain two distinct labeled speakers")
	}
	return lines, nil
}

func canonicalLabelFromMatch(rawLabel string) string {
	key := normalizeLabelKey(rawLabel)
	switch key {
	case "speaker1", "alex", "a":
		return "Speaker 1"
	case "speaker2", "jordan", "b":
		return "Speaker 2"
	default:
		return canonicalSpeaker(rawLabel)
	}
}

func appendContinuation(lines *[]Line, text string) {
	if len(*lines) == 0 {
		return
	}
	last := &(*lines)[len(*lines)-1]
	last.Text = strings.TrimSpace(last.Text + " " + text)
}
