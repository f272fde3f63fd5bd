package tutor

import "strings"

// newProblemKeywords are phrases a student uses when abandoning the
// current exercise for a fresh one. Matched case-insensitively against
// the most recent student message.
var newProblemKeywords = []string{
	"new problem",
	"next problem",
	"different problem",
	"another problem",
	"can we do another",
	"let's try a new",
	"moving on to",
}

// DetectNewProblem reports whether the student has started a new
// problem. An explicit client flag always wins; otherwise the latest
// student message is scanned for transition phrases. With fewer than
// two messages there is not enough context to judge.
//
// Deterministic, no side effects.
func DetectNewProblem(msgs []Message, explicitFlag bool) bool {
	if explicitFlag {
		return true
	}
	if len(msgs) < 2 {
		return false
	}

	var lastUser *Message
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			lastUser = &msgs[i]
			break
		}
	}
	if lastUser == nil {
		return false
	}

	content := strings.ToLower(lastUser.Content)
	for _, kw := range newProblemKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
