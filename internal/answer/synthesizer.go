// Package answer defines the answer synthesis contract and its fallbacks.
package answer

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer consumes a question and ranked runbook context and returns prose.
// Implementations call an external model; failures are recovered by the caller
// with ComposeFallback, never surfaced to the user as errors.
type Synthesizer interface {
	Synthesize(ctx context.Context, query, contextText string) (string, error)
}

// ComposeFallback builds a deterministic answer by concatenating the
// top-ranked context lines. Used when no synthesizer is configured or the
// synthesizer call fails.
func ComposeFallback(contextText string) string {
	var lines []string
	for _, line := range strings.Split(contextText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "---") {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 10 {
			break
		}
	}
	if len(lines) == 0 {
		return "I couldn't find relevant information in the runbooks for your query."
	}
	return fmt.Sprintf("Based on the runbooks, here's what I found:\n\n%s", strings.Join(lines, "\n"))
}

// NoCoverageAnswer is the response for a query with no sufficiently relevant
// chunks. Precision over recall: an honest "not found" beats an answer built
// from irrelevant chunks.
func NoCoverageAnswer(query string) string {
	return fmt.Sprintf("I don't have specific runbook information about %q. "+
		"This topic may not be covered in our current documentation. "+
		"Consider checking other internal resources or creating a runbook for this topic.", query)
}
