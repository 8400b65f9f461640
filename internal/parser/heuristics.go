// File path: internal/parser/heuristics.go
package parser

import (
	"regexp"
	"strings"
)

const (
	maxPhaseMatches     = 10
	maxDecisionMatches  = 10
	perPatternDecisions = 5
	minDecisionLength   = 20
)

var (
	numberedItemRe = regexp.MustCompile(`(?m)^\s*(\d+[\.\)]\s*.+)$`)
	checkboxItemRe = regexp.MustCompile(`(?m)^\s*[-*]\s*\[[ x]\]\s*(.+)$`)

	decisionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:I'll|Let's|We should|Going to|I will|We'll)\s+([^.!?\n]+[.!?]?)`),
		regexp.MustCompile(`(?i)(?:decided to|choosing to|opting for)\s+([^.!?\n]+[.!?]?)`),
	}
)

// DetectPhases scans text for enumerated plan structures: numbered list lines
// (only when at least two are present) followed by checkbox list lines. The
// result is best effort and may be empty.
func DetectPhases(text string) []string {
	var phases []string

	numbered := numberedItemRe.FindAllStringSubmatch(text, -1)
	if len(numbered) >= 2 {
		for i, m := range numbered {
			if i == maxPhaseMatches {
				break
			}
			phases = append(phases, m[1])
		}
	}

	checkboxes := checkboxItemRe.FindAllStringSubmatch(text, -1)
	for i, m := range checkboxes {
		if i == maxPhaseMatches {
			break
		}
		phases = append(phases, m[1])
	}

	return phases
}

// DetectDecisions scans text for decision-intent phrases ("I'll ...",
// "decided to ..."). Matches shorter than 20 characters are dropped; at most
// ten decisions are returned.
func DetectDecisions(text string) []string {
	var decisions []string

	for _, re := range decisionRes {
		matches := re.FindAllStringSubmatch(text, -1)
		if len(matches) > perPatternDecisions {
			matches = matches[:perPatternDecisions]
		}
		for _, m := range matches {
			if len(m[1]) > minDecisionLength {
				decisions = append(decisions, strings.TrimSpace(m[1]))
			}
		}
	}

	if len(decisions) > maxDecisionMatches {
		decisions = decisions[:maxDecisionMatches]
	}
	return decisions
}

var bashPathRe = regexp.MustCompile(`[/\w.-]+\.[a-zA-Z]{1,10}`)

// ExtractToolFiles pulls file path references out of a tool invocation input.
// Glob and Grep produce synthetic placeholder entries rather than concrete
// paths; callers exclude those from the derived file sets.
func ExtractToolFiles(name string, input map[string]interface{}) []string {
	var files []string

	switch name {
	case "Read", "Write", "Edit":
		if path, ok := input["file_path"].(string); ok && path != "" {
			files = append(files, path)
		}
	case "Bash":
		if cmd, ok := input["command"].(string); ok {
			files = append(files, bashPathRe.FindAllString(cmd, -1)...)
		}
	case "Glob":
		if pattern, ok := input["pattern"].(string); ok && pattern != "" {
			files = append(files, "[pattern: "+pattern+"]")
		}
	case "Grep":
		if pattern, ok := input["pattern"].(string); ok && pattern != "" {
			files = append(files, "[search: "+pattern+"]")
		}
	}

	return files
}

// syntheticPath reports whether a file entry is a placeholder produced when no
// concrete path could be resolved.
func syntheticPath(path string) bool {
	return strings.HasPrefix(path, "[")
}
