package generator

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	choiceLinePattern  = regexp.MustCompile(`^\s*(?:\d+[).:]|[-*])\s*(.+?)\s*$`)
	choiceLabelPattern = regexp.MustCompile(`(?i)CHOICES:`)
)

// ExtractChoiceBlock splits streamed chapter text into prose and the
// trailing labeled choice block. Parsing is deliberately dumb: find the
// last "CHOICES:" label, take the numbered lines after it, nothing more.
// The label match is case-insensitive over the original text; uppercasing
// a copy and reusing its offsets breaks on case mappings that change byte
// length (ſ → S).
func ExtractChoiceBlock(text string) (prose string, choices []string) {
	labels := choiceLabelPattern.FindAllStringIndex(text, -1)
	if labels == nil {
		return strings.TrimSpace(text), nil
	}

	last := labels[len(labels)-1]
	prose = strings.TrimSpace(text[:last[0]])
	block := text[last[1]:]

	for _, line := range strings.Split(block, "\n") {
		if m := choiceLinePattern.FindStringSubmatch(line); m != nil {
			choices = append(choices, m[1])
		}
	}
	return prose, choices
}

// ParseSummaryReply extracts the TITLE/SUMMARY labeled lines from an
// enrichment reply. Missing labels yield empty strings; the caller decides
// on placeholders.
func ParseSummaryReply(text string) (title, summary string) {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		upper := strings.ToUpper(trimmed)
		switch {
		case strings.HasPrefix(upper, "TITLE:"):
			title = strings.TrimSpace(trimmed[len("TITLE:"):])
		case strings.HasPrefix(upper, "SUMMARY:"):
			summary = strings.TrimSpace(trimmed[len("SUMMARY:"):])
		case summary != "" && !strings.HasPrefix(upper, "TITLE:"):
			// Multi-line summaries happen; keep appending until the end.
			if trimmed != "" {
				summary += " " + trimmed
			}
		}
	}
	return title, summary
}

// ParseVisualsReply decodes the JSON object of character descriptions,
// tolerating markdown code fences around it.
func ParseVisualsReply(text string) (map[string]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	visuals := make(map[string]string)
	if err := json.Unmarshal([]byte(cleaned), &visuals); err != nil {
		return nil, err
	}
	return visuals, nil
}
