package engine

import (
	"fmt"
	"os"
	"strings"
)

var placeholderMarkers = []string{
	"TODO",
	"FIXME",
	"TBD",
	"PLACEHOLDER",
	"<INSERT",
	"LOREM IPSUM",
}

// StructuralIssues runs the cheap completeness checks on a result: the
// output exists, carries no unresolved placeholders, and every declared
// artifact is actually present. It is a heuristic gate shared by the
// self-review step and the verifier's baseline checks; passing it is not
// verification.
func StructuralIssues(result Result) []string {
	var issues []string

	if strings.TrimSpace(result.Output) == "" {
		issues = append(issues, "result output is empty")
	}

	upper := strings.ToUpper(result.Output)
	for _, marker := range placeholderMarkers {
		if strings.Contains(upper, marker) {
			issues = append(issues, fmt.Sprintf("unresolved placeholder %q in output", marker))
		}
	}

	for _, path := range result.Artifacts {
		if strings.TrimSpace(path) == "" {
			issues = append(issues, "declared artifact has empty path")
			continue
		}
		if _, err := os.Stat(path); err != nil {
			issues = append(issues, fmt.Sprintf("declared artifact %s not present", path))
		}
	}

	for _, effect := range result.Effects {
		if strings.TrimSpace(effect) == "" {
			issues = append(issues, "declared side effect is empty")
		}
	}

	return issues
}
