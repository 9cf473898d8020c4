// Package conversation implements the turn-by-turn meeting scheduling
// engine: casual-turn classification, LLM field extraction, state
// accumulation, availability suggestions, and booking.
package conversation

import "context"

// MeetingState accumulates a meeting request across turns. All fields are
// independently optional; Date and Deadline hold ISO calendar dates once
// normalized, TimePref stays free-text until scheduling time.
type MeetingState struct {
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Date            string `json:"date,omitempty"`
	TimePref        string `json:"time_pref,omitempty"`
	Deadline        string `json:"deadline,omitempty"`
}

// Complete reports whether the request can be scheduled. Deadline is
// optional and never blocks completeness.
func (s MeetingState) Complete() bool {
	return len(s.MissingFields()) == 0
}

// MissingFields names the required fields still unset, in prompt order.
func (s MeetingState) MissingFields() []string {
	var missing []string
	if s.DurationMinutes == 0 {
		missing = append(missing, "duration_minutes")
	}
	if s.Date == "" {
		missing = append(missing, "date")
	}
	if s.TimePref == "" {
		missing = append(missing, "time_pref")
	}
	return missing
}

// Clear resets every field.
func (s *MeetingState) Clear() {
	*s = MeetingState{}
}

func (s MeetingState) hasAnyOtherThanDate() bool {
	return s.DurationMinutes != 0 || s.TimePref != "" || s.Deadline != ""
}

// ExtractedFields is the partial record produced by the extraction
// capability for a single turn. It is merged into MeetingState and
// discarded.
type ExtractedFields struct {
	DurationMinutes    int    `json:"duration_minutes,omitempty"`
	Date               string `json:"date,omitempty"`
	TimePref           string `json:"time_pref,omitempty"`
	Deadline           string `json:"deadline,omitempty"`
	RequestSuggestions bool   `json:"request_suggestions,omitempty"`
	IsDateSelection    bool   `json:"is_date_selection,omitempty"`
}

// Empty reports whether extraction produced no usable signal at all.
func (e ExtractedFields) Empty() bool {
	return e == ExtractedFields{}
}

// dateOnly reports whether the extraction carries a date and nothing else.
func (e ExtractedFields) dateOnly() bool {
	return e.Date != "" && e == ExtractedFields{Date: e.Date}
}

// TurnKind classifies what a non-casual turn means for the accumulated
// state.
type TurnKind int

const (
	// TurnUpdate merges extracted fields into the existing state.
	TurnUpdate TurnKind = iota
	// TurnNewRequest clears the state before merging.
	TurnNewRequest
	// TurnDateSelection treats the turn as answering the date question.
	TurnDateSelection
)

// ClassifyTurn decides between starting over and filling in the blanks. A
// turn is a date selection when the extractor flags it, or when it carries
// only a date while other fields are already collected (a lone date during
// an ongoing exchange answers the date question rather than opening a new
// request). Otherwise a turn that supplies duration or time preference is a
// new request.
func ClassifyTurn(extracted ExtractedFields, state MeetingState) TurnKind {
	if extracted.IsDateSelection {
		return TurnDateSelection
	}
	if extracted.dateOnly() && state.hasAnyOtherThanDate() {
		return TurnDateSelection
	}
	if extracted.DurationMinutes != 0 || extracted.TimePref != "" {
		return TurnNewRequest
	}
	return TurnUpdate
}

// merge overwrites state fields with any present extracted values.
func merge(state *MeetingState, extracted ExtractedFields) {
	if extracted.DurationMinutes != 0 {
		state.DurationMinutes = extracted.DurationMinutes
	}
	if extracted.Date != "" {
		state.Date = extracted.Date
	}
	if extracted.TimePref != "" {
		state.TimePref = extracted.TimePref
	}
	if extracted.Deadline != "" {
		state.Deadline = extracted.Deadline
	}
}

// StateStore persists per-conversation meeting state. Load returns a zero
// state for unknown conversations.
type StateStore interface {
	Load(ctx context.Context, conversationID string) (MeetingState, error)
	Save(ctx context.Context, conversationID string, state MeetingState) error
	Delete(ctx context.Context, conversationID string) error
}
