// Package intent decides whether chat input asks for a drafted reply.
// It is a fixed keyword heuristic: false positives such as
// "don't reply to spam" are expected.
package intent

import "strings"

// Terms are matched case-insensitively anywhere in the input.
var Terms = []string{
	"draft",
	"reply",
	"write a response",
	"compose",
	"send a reply",
	"write back",
}

// Result is the classifier's decision.
type Result struct {
	DraftIntent bool
	// Term is the first vocabulary entry found, empty when none matched.
	Term string
}

// Classify reports a draft intent when text contains one of Terms and an
// email context is bound. Without an email there is nothing to reply to,
// so the input is always a plain query.
func Classify(text string, emailBound bool) Result {
	lower := strings.ToLower(text)
	for _, term := range Terms {
		if strings.Contains(lower, term) {
			return Result{DraftIntent: emailBound, Term: term}
		}
	}
	return Result{}
}
