// Package summarizer holds the deterministic fallback used whenever the
// primary model errors or is unconfigured, so summarization never stalls on
// an external dependency.
package summarizer

import (
	"context"
	"strings"

	"filingscout/internal/ports"
)

const (
	maxSentences   = 3
	minSentenceLen = 20
	placeholder    = "Corporate filing update available."
)

// Heuristic summarizes by keeping the first few substantive sentences.
type Heuristic struct{}

var _ ports.Summarizer = (*Heuristic)(nil)

// NewHeuristic builds the fallback summarizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Summarize joins the first three sentences longer than 20 characters; when
// the text yields none (empty extraction, attachment missing), it falls back
// to a fixed placeholder. It never returns an error.
func (h *Heuristic) Summarize(_ context.Context, _ string, text string) (string, error) {
	flat := strings.ReplaceAll(text, "\n", " ")

	var clean []string
	for _, sentence := range strings.Split(flat, ".") {
		s := strings.TrimSpace(sentence)
		if len(s) > minSentenceLen {
			clean = append(clean, s)
		}
		if len(clean) == maxSentences {
			break
		}
	}

	if len(clean) == 0 {
		return placeholder, nil
	}
	return strings.Join(clean, ". ") + ".", nil
}
