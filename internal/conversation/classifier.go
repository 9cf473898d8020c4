package conversation

import "strings"

var greetings = []string{
	"hi", "hello", "hey", "good morning", "good afternoon", "good evening",
	"how are you", "what's up", "whats up", "sup", "yo", "hiya",
}

var casualPhrases = []string{
	"thanks", "thank you", "bye", "goodbye", "see you", "ok", "okay", "cool",
}

// IsCasual reports whether the input is a greeting or social phrase that
// should bypass extraction and state handling entirely.
func IsCasual(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))

	for _, phrase := range greetings {
		if lower == phrase || strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	for _, phrase := range casualPhrases {
		if lower == phrase {
			return true
		}
	}
	return false
}

// CasualReply returns a canned response for a casual turn.
func CasualReply(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))

	for _, greeting := range []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening"} {
		if strings.Contains(lower, greeting) {
			return "Hello! I'm here to help you schedule meetings. You can tell me things like " +
				"'Schedule a 30-minute meeting on Monday at 2 PM' or 'I need a meeting before Friday at 10 AM'. " +
				"What would you like to schedule?"
		}
	}

	for _, thanks := range []string{"thanks", "thank you"} {
		if strings.Contains(lower, thanks) {
			return "You're welcome! Is there anything else I can help you schedule?"
		}
	}

	for _, bye := range []string{"bye", "goodbye", "see you"} {
		if strings.Contains(lower, bye) {
			return "Goodbye! Feel free to come back anytime you need to schedule a meeting."
		}
	}

	switch lower {
	case "ok", "okay", "cool", "got it":
		return "Great! What would you like to schedule?"
	}

	return "I'm here to help you schedule meetings. You can tell me the duration, date, and time you prefer. " +
		"What meeting would you like to schedule?"
}
