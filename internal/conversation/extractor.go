package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Extractor maps free text plus the current state to a partial meeting
// record. Implementations may fail or return an empty record; callers treat
// both as "no data extracted".
type Extractor interface {
	Extract(ctx context.Context, state MeetingState, userText string) (ExtractedFields, error)
}

const extractionSystemPrompt = "You are a helpful scheduler assistant. Only respond with JSON."

// buildExtractionPrompt renders the turn prompt: current state, the user's
// message, and the output contract.
func buildExtractionPrompt(state MeetingState, userText string) string {
	stateJSON, _ := json.Marshal(state)
	return fmt.Sprintf(`Current meeting state:
%s

User input:
%s

Instructions:
- If the user is providing a complete meeting request with duration, date, and time, extract all details and set is_date_selection to false
- If the user is just selecting a date (like "Sunday", "Monday", "option 1", etc.) from previously suggested options, set is_date_selection to true and only extract the date
- If the user is asking for suggestions or alternatives, set request_suggestions to true

Extract any new info in JSON:
{
  "duration_minutes": int optional,
  "date": str optional (day or date),
  "time_pref": str optional,
  "deadline": str optional (day or date),
  "request_suggestions": bool optional (true if asking for available dates/times),
  "is_date_selection": bool optional (true if user is selecting from previously suggested dates)
}
Only respond with JSON. If no new info, return {}`, stateJSON, userText)
}

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

// parseExtraction pulls the first JSON object out of a model response. A
// response without a parsable object yields an empty record, which the
// engine reads as "no data extracted".
func parseExtraction(response string) ExtractedFields {
	match := jsonObjectRE.FindString(response)
	if match == "" {
		return ExtractedFields{}
	}

	var fields ExtractedFields
	if err := json.Unmarshal([]byte(match), &fields); err != nil {
		return ExtractedFields{}
	}
	return fields
}
