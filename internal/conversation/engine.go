package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/njwalker/meetingbot/internal/calendar"
	"github.com/njwalker/meetingbot/internal/observability/metrics"
	"github.com/njwalker/meetingbot/internal/schedule"
	"github.com/njwalker/meetingbot/internal/timeparse"
	"github.com/njwalker/meetingbot/pkg/logging"
)

// BookingClient bundles the calendar capabilities the engine needs: the
// free/busy query used for both day scans and exact-window checks, and
// event creation.
type BookingClient interface {
	schedule.FreeBusyClient
	CreateEvent(ctx context.Context, start, end time.Time, summary, description string, attendees []string) (*calendar.BookedEvent, error)
}

// Turn outcomes recorded per handled turn.
const (
	outcomeCasual        = "casual"
	outcomeNoExtraction  = "no_extraction"
	outcomeSuggestions   = "suggestions"
	outcomeClarify       = "clarify"
	outcomeRephrase      = "rephrase"
	outcomeInfeasible    = "deadline_infeasible"
	outcomeUnavailable   = "unavailable"
	outcomeBooked        = "booked"
	outcomeBookingFailed = "booking_failed"
)

const defaultEventSummary = "Scheduled Meeting"

// Engine drives one conversation turn at a time: classify, extract, merge,
// normalize, and either clarify, suggest, or book.
type Engine struct {
	store     StateStore
	extractor Extractor
	calendar  BookingClient
	searcher  *schedule.Searcher
	logger    *logging.Logger
	metrics   *metrics.ConversationMetrics
	tracer    trace.Tracer
	now       func() time.Time

	eventSummary     string
	eventDescription string
}

// NewEngine wires the conversation engine. metrics may be nil.
func NewEngine(store StateStore, extractor Extractor, cal BookingClient, searcher *schedule.Searcher, logger *logging.Logger, m *metrics.ConversationMetrics) *Engine {
	if store == nil {
		panic("conversation: state store cannot be nil")
	}
	if extractor == nil {
		panic("conversation: extractor cannot be nil")
	}
	if cal == nil {
		panic("conversation: calendar client cannot be nil")
	}
	if searcher == nil {
		searcher = schedule.NewSearcher(cal, logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		store:        store,
		extractor:    extractor,
		calendar:     cal,
		searcher:     searcher,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer("meetingbot.internal.conversation.engine"),
		now:          time.Now,
		eventSummary: defaultEventSummary,
	}
}

// WithClock overrides the engine's time source. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithEventDetails overrides the summary and description of booked events.
func (e *Engine) WithEventDetails(summary, description string) *Engine {
	if summary != "" {
		e.eventSummary = summary
	}
	e.eventDescription = description
	return e
}

// Snapshot returns the current state of a conversation.
func (e *Engine) Snapshot(ctx context.Context, conversationID string) (MeetingState, error) {
	return e.store.Load(ctx, conversationID)
}

// Reset clears a conversation's accumulated state.
func (e *Engine) Reset(ctx context.Context, conversationID string) error {
	return e.store.Delete(ctx, conversationID)
}

// HandleTurn processes one user utterance for the given conversation and
// returns the reply plus the state after the turn. Every failure mode maps
// to a user-facing reply; the returned error is reserved for state-store
// breakage.
func (e *Engine) HandleTurn(ctx context.Context, conversationID, input string) (string, MeetingState, error) {
	ctx, span := e.tracer.Start(ctx, "conversation.turn")
	defer span.End()
	span.SetAttributes(attribute.String("meetingbot.conversation_id", conversationID))

	started := time.Now()
	outcome := outcomeClarify
	defer func() {
		span.SetAttributes(attribute.String("meetingbot.turn_outcome", outcome))
		e.metrics.ObserveTurn(outcome, time.Since(started).Seconds())
	}()

	state, err := e.store.Load(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		return "", MeetingState{}, err
	}

	if IsCasual(input) {
		outcome = outcomeCasual
		return CasualReply(input), state, nil
	}

	extracted, err := e.extractor.Extract(ctx, state, input)
	if err != nil {
		e.logger.Warn("extraction failed", "conversation_id", conversationID, "error", err)
		extracted = ExtractedFields{}
	}
	if extracted.Empty() {
		outcome = outcomeNoExtraction
		return "I didn't catch any meeting details in your message. Could you please tell me about the " +
			"meeting you'd like to schedule? For example, 'I need a 30-minute meeting on Monday at 2 PM'.", state, nil
	}

	if extracted.RequestSuggestions {
		reply := e.suggest(ctx, state)
		outcome = outcomeSuggestions
		return reply, state, nil
	}

	if ClassifyTurn(extracted, state) == TurnNewRequest {
		state.Clear()
	}
	merge(&state, extracted)

	// The state is persisted before every return below; normalization
	// failures intentionally keep already-normalized fields.
	if state.Date != "" {
		normalized, err := timeparse.NormalizeDate(state.Date, e.now())
		if err != nil {
			outcome = outcomeRephrase
			return e.reply(ctx, conversationID, state,
				fmt.Sprintf("I couldn't understand the date: %s. Please rephrase.", state.Date))
		}
		state.Date = timeparse.FormatDate(normalized)
	}
	if state.Deadline != "" {
		normalized, err := timeparse.NormalizeDate(state.Deadline, e.now())
		if err != nil {
			outcome = outcomeRephrase
			return e.reply(ctx, conversationID, state,
				fmt.Sprintf("I couldn't understand the deadline: %s. Please rephrase.", state.Deadline))
		}
		state.Deadline = timeparse.FormatDate(normalized)
	}

	if missing := state.MissingFields(); len(missing) > 0 {
		outcome = outcomeClarify
		return e.reply(ctx, conversationID, state,
			fmt.Sprintf("Could you provide the following missing details: %s?", strings.Join(missing, ", ")))
	}

	if state.Deadline != "" {
		meetingDate, _ := timeparse.ParseDate(state.Date)
		deadlineDate, _ := timeparse.ParseDate(state.Deadline)
		if meetingDate.After(deadlineDate) {
			outcome = outcomeInfeasible
			return e.reply(ctx, conversationID, state, e.deadlineAlternatives(ctx, state))
		}
	}

	reply, bookOutcome := e.book(ctx, conversationID, state)
	outcome = bookOutcome
	if bookOutcome == outcomeBooked {
		state.Clear()
		if err := e.store.Delete(ctx, conversationID); err != nil {
			span.RecordError(err)
			return "", MeetingState{}, err
		}
		return reply, state, nil
	}
	return e.reply(ctx, conversationID, state, reply)
}

// reply persists the state and returns the given message.
func (e *Engine) reply(ctx context.Context, conversationID string, state MeetingState, msg string) (string, MeetingState, error) {
	if err := e.store.Save(ctx, conversationID, state); err != nil {
		return "", MeetingState{}, err
	}
	return msg, state, nil
}

// suggest runs the deadline-bounded availability search. It requires
// duration, time preference, and deadline to already be collected; the
// current turn's extraction does not count.
func (e *Engine) suggest(ctx context.Context, state MeetingState) string {
	if state.DurationMinutes == 0 || state.TimePref == "" || state.Deadline == "" {
		return "I need the meeting duration, preferred time, and deadline to suggest available dates."
	}

	deadline, err := timeparse.ParseDate(state.Deadline)
	if err != nil {
		return fmt.Sprintf("I couldn't understand the deadline: %s. Please rephrase.", state.Deadline)
	}

	dates, err := e.searcher.Search(ctx,
		time.Duration(state.DurationMinutes)*time.Minute, state.TimePref, deadline, e.now())
	if err != nil {
		return fmt.Sprintf("I couldn't understand the preferred time: %s. Please rephrase.", state.TimePref)
	}
	if len(dates) == 0 {
		return fmt.Sprintf("No available slots found before %s at %s. Please try a different time or deadline.",
			state.Deadline, state.TimePref)
	}

	var sb strings.Builder
	sb.WriteString("Here are available dates before your deadline:\n")
	writeDateList(&sb, dates)
	sb.WriteString("\nPlease let me know which date you'd prefer.")
	return sb.String()
}

// deadlineAlternatives handles a requested date falling after the deadline:
// it offers deadline-bounded alternatives instead of booking.
func (e *Engine) deadlineAlternatives(ctx context.Context, state MeetingState) string {
	deadline, _ := timeparse.ParseDate(state.Deadline)
	dates, err := e.searcher.Search(ctx,
		time.Duration(state.DurationMinutes)*time.Minute, state.TimePref, deadline, e.now())
	if err != nil {
		e.logger.Warn("alternative search failed", "error", err)
		dates = nil
	}
	if len(dates) == 0 {
		return fmt.Sprintf("The date you provided is after the deadline, and no slots are available before %s at %s. "+
			"Please try a different time or extend the deadline.", state.Deadline, state.TimePref)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "The date %s is after your deadline %s. Here are available dates before the deadline:\n",
		state.Date, state.Deadline)
	writeDateList(&sb, dates)
	sb.WriteString("\nPlease choose one of these dates.")
	return sb.String()
}

// book checks the exact requested window and creates the event when it is
// free. It never substitutes a different time; day-level alternatives are
// the suggestion flow's job. The first free interval is booked in full even
// when longer than the requested duration.
func (e *Engine) book(ctx context.Context, conversationID string, state MeetingState) (reply, outcome string) {
	if state.DurationMinutes <= 0 {
		return "Invalid duration. Please tell me how long the meeting should be.", outcomeRephrase
	}
	duration := time.Duration(state.DurationMinutes) * time.Minute

	hour, minute, err := timeparse.ParseTimeOfDay(state.TimePref)
	if err != nil {
		return fmt.Sprintf("Invalid time preference: %s. Please rephrase.", state.TimePref), outcomeRephrase
	}
	date, err := timeparse.ParseDate(state.Date)
	if err != nil {
		return fmt.Sprintf("I couldn't understand the date: %s. Please rephrase.", state.Date), outcomeRephrase
	}

	start := timeparse.At(date, hour, minute)
	end := start.Add(duration)

	busy, err := e.calendar.QueryBusy(ctx, start, end)
	if err != nil {
		// Degrade to "window unavailable" rather than failing the turn.
		e.logger.Warn("freebusy query failed", "conversation_id", conversationID, "error", err)
		return "No available slots at that time. Please try another time.", outcomeUnavailable
	}

	slots, err := schedule.FreeIntervals(start, end, busy, duration)
	if err != nil || len(slots) == 0 {
		return "No available slots at that time. Please try another time.", outcomeUnavailable
	}

	slot := slots[0]
	booked, err := e.calendar.CreateEvent(ctx, slot.Start, slot.End, e.eventSummary, e.eventDescription, nil)
	if err != nil {
		// State is retained so the user can simply try again.
		e.logger.Error("event creation failed", "conversation_id", conversationID, "error", err)
		return "I couldn't create the meeting on the calendar. Your request is saved; please try again in a moment.", outcomeBookingFailed
	}

	e.metrics.ObserveBooking()
	reply = fmt.Sprintf("Meeting scheduled from %s to %s. Link: %s",
		slot.Start.Format(time.RFC3339), slot.End.Format(time.RFC3339), booked.CalendarLink)
	if booked.MeetLink != "" {
		reply += fmt.Sprintf(" Meet: %s", booked.MeetLink)
	}
	return reply, outcomeBooked
}

func writeDateList(sb *strings.Builder, dates []schedule.AvailableDate) {
	for i, d := range dates {
		fmt.Fprintf(sb, "%d. %s\n", i+1, d.Formatted)
	}
}
