package dialog

import (
	"fmt"
	"strings"

	"SlotChat/internal/intent"
)

const (
	noSummary         = "No symptom data collected in this session to summarize."
	incompleteSummary = "It seems we collected some data, but I can't form a full summary. Please ensure all questions were answered."
	genericHeader     = "Okay, I've recorded the following:"
)

// Summarize renders collected data as human-readable lines. It is a pure
// function: slots missing from data are skipped, and it never reports
// validation problems.
func Summarize(def *intent.Definition, data map[string]string) []string {
	if def == nil || len(data) == 0 {
		return []string{noSummary}
	}

	if def.Summary == nil {
		lines := []string{genericHeader}
		for _, slot := range def.RequiredSlots {
			if v, ok := data[slot]; ok {
				lines = append(lines, fmt.Sprintf("- %s: %s", strings.ReplaceAll(slot, "_", " "), v))
			}
		}
		if len(lines) == 1 {
			return []string{incompleteSummary}
		}
		return lines
	}

	lines := []string{def.Summary.Header}
	for _, f := range def.Summary.Fields {
		if v, ok := data[f.Slot]; ok {
			lines = append(lines, fmt.Sprintf("- %s: %s%s", f.Label, v, f.Suffix))
		}
	}
	if len(lines) == 1 {
		return []string{incompleteSummary}
	}
	return lines
}
