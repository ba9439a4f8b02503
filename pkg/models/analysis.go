package models

import "strings"

// AnalysisResult is the descriptive text the analysis server returns for one
// image. Sections are separated by newlines.
type AnalysisResult string

// Sections splits the result into its non-blank lines, in original order.
func (r AnalysisResult) Sections() []string {
	text := strings.ReplaceAll(string(r), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	sections := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		sections = append(sections, line)
	}
	return sections
}
