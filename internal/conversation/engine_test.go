package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njwalker/meetingbot/internal/calendar"
	"github.com/njwalker/meetingbot/internal/schedule"
	"github.com/njwalker/meetingbot/pkg/logging"
)

// Wednesday 2026-09-02, 08:00 UTC.
var engineNow = time.Date(2026, time.September, 2, 8, 0, 0, 0, time.UTC)

// scriptedExtractor returns queued extractions in order.
type scriptedExtractor struct {
	queue []ExtractedFields
	errs  []error
	calls int
}

func (s *scriptedExtractor) Extract(_ context.Context, _ MeetingState, _ string) (ExtractedFields, error) {
	i := s.calls
	s.calls++
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.queue) {
		return s.queue[i], err
	}
	return ExtractedFields{}, err
}

type bookedWindow struct {
	start, end time.Time
}

// fakeCalendar implements BookingClient with programmable busy data.
type fakeCalendar struct {
	busy      []schedule.BusyInterval
	queryErr  error
	createErr error
	created   []bookedWindow
}

func (f *fakeCalendar) QueryBusy(_ context.Context, _, _ time.Time) ([]schedule.BusyInterval, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.busy, nil
}

func (f *fakeCalendar) CreateEvent(_ context.Context, start, end time.Time, _, _ string, _ []string) (*calendar.BookedEvent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, bookedWindow{start: start, end: end})
	return &calendar.BookedEvent{
		EventID:      "evt1",
		CalendarLink: "https://calendar.google.com/event?eid=evt1",
		MeetLink:     "https://meet.google.com/abc-defg-hij",
	}, nil
}

func newTestEngine(t *testing.T, extractor Extractor, cal *fakeCalendar) (*Engine, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	logger := logging.Default()
	searcher := schedule.NewSearcher(cal, logger)
	engine := NewEngine(store, extractor, cal, searcher, logger, nil).
		WithClock(func() time.Time { return engineNow })
	return engine, store
}

func TestHandleTurnFullRequestBooksAndResets(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	cal := &fakeCalendar{}
	engine, store := newTestEngine(t, extractor, cal)

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "Schedule a 30 minute meeting on Friday at 2pm")
	require.NoError(t, err)

	require.Len(t, cal.created, 1)
	wantStart := time.Date(2026, time.September, 4, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, wantStart, cal.created[0].start)
	assert.Equal(t, wantStart.Add(30*time.Minute), cal.created[0].end)

	assert.Contains(t, reply, "Meeting scheduled from 2026-09-04T14:00:00Z to 2026-09-04T14:30:00Z")
	assert.Contains(t, reply, "https://calendar.google.com/event?eid=evt1")
	assert.Contains(t, reply, "https://meet.google.com/abc-defg-hij")
	assert.Equal(t, MeetingState{}, state, "state resets after booking")

	stored, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, MeetingState{}, stored)
}

func TestHandleTurnCasualLeavesStateUntouched(t *testing.T) {
	extractor := &scriptedExtractor{}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	prior := MeetingState{DurationMinutes: 30, TimePref: "2pm"}
	require.NoError(t, store.Save(context.Background(), "conv-1", prior))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "hi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Hello!")
	assert.Equal(t, prior, state)
	assert.Zero(t, extractor.calls, "casual turns bypass extraction")
}

func TestHandleTurnNoExtractionAsksToRestate(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{{}}}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	prior := MeetingState{DurationMinutes: 30}
	require.NoError(t, store.Save(context.Background(), "conv-1", prior))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "mumble")
	require.NoError(t, err)
	assert.Contains(t, reply, "I didn't catch any meeting details")
	assert.Equal(t, prior, state, "state unchanged on empty extraction")
}

func TestHandleTurnExtractionErrorDegradesToRestatePrompt(t *testing.T) {
	extractor := &scriptedExtractor{errs: []error{errors.New("model timeout")}}
	engine, _ := newTestEngine(t, extractor, &fakeCalendar{})

	reply, _, err := engine.HandleTurn(context.Background(), "conv-1", "schedule something")
	require.NoError(t, err)
	assert.Contains(t, reply, "I didn't catch any meeting details")
}

func TestHandleTurnIncompleteRequestListsMissingFields(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30},
		{DurationMinutes: 30},
	}}
	engine, _ := newTestEngine(t, extractor, &fakeCalendar{})

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "a 30 minute meeting")
	require.NoError(t, err)
	assert.Contains(t, reply, "date, time_pref")
	assert.Equal(t, 30, state.DurationMinutes)

	// Re-submitting without new information re-prompts identically.
	reply2, _, err := engine.HandleTurn(context.Background(), "conv-1", "a 30 minute meeting")
	require.NoError(t, err)
	assert.Equal(t, reply, reply2)
}

func TestHandleTurnLoneDateSelectionMergesAndBooks(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{Date: "Monday"},
	}}
	cal := &fakeCalendar{}
	engine, store := newTestEngine(t, extractor, cal)

	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, TimePref: "2pm"}))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "Monday")
	require.NoError(t, err)

	require.Len(t, cal.created, 1)
	wantStart := time.Date(2026, time.September, 7, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, wantStart, cal.created[0].start, "lone date answers the date question without resetting")
	assert.Contains(t, reply, "Meeting scheduled")
	assert.Equal(t, MeetingState{}, state)
}

func TestHandleTurnNewRequestResetsPriorState(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 60, TimePref: "10am"},
	}}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	// Deadline from a previous exchange must not leak into the new request.
	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, Date: "2026-09-04", TimePref: "2pm", Deadline: "2026-09-04"}))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "actually make it an hour at 10am")
	require.NoError(t, err)
	assert.Contains(t, reply, "missing details: date")
	assert.Equal(t, MeetingState{DurationMinutes: 60, TimePref: "10am"}, state)
}

func TestHandleTurnSameWeekdayBooksNextWeekNotToday(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Wednesday", TimePref: "2pm"},
	}}
	cal := &fakeCalendar{}
	engine, _ := newTestEngine(t, extractor, cal)

	_, _, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes next Wednesday at 2pm")
	require.NoError(t, err)
	require.Len(t, cal.created, 1)
	assert.Equal(t, time.Date(2026, time.September, 9, 14, 0, 0, 0, time.UTC), cal.created[0].start)
}

func TestHandleTurnUnparsableDatePromptsRephraseAndKeepsPartialState(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "someday soonish", TimePref: "2pm"},
	}}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes someday soonish at 2pm")
	require.NoError(t, err)
	assert.Contains(t, reply, "I couldn't understand the date: someday soonish")
	assert.Equal(t, 30, state.DurationMinutes)
	assert.Equal(t, "2pm", state.TimePref)

	stored, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, state, stored, "partial state persists for the next turn")
}

func TestHandleTurnDeadlineInfeasibleOffersAlternatives(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{Date: "Monday", IsDateSelection: true},
	}}
	cal := &fakeCalendar{}
	engine, store := newTestEngine(t, extractor, cal)

	// Deadline this Friday; Monday resolves to the following week.
	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, TimePref: "2pm", Deadline: "2026-09-04"}))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "Monday")
	require.NoError(t, err)
	assert.Empty(t, cal.created, "must not book past the deadline")
	assert.Contains(t, reply, "is after your deadline 2026-09-04")
	assert.Contains(t, reply, "1. 2026-09-02 (Wednesday)")
	assert.Contains(t, reply, "3. 2026-09-04 (Friday)")
	assert.NotContains(t, reply, "2026-09-05")
	assert.Equal(t, "2026-09-07", state.Date)
}

func TestHandleTurnDeadlineInfeasibleNoAlternatives(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{Date: "Monday", IsDateSelection: true},
	}}
	cal := &fakeCalendar{busy: []schedule.BusyInterval{{
		Start: time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC),
	}}}
	engine, store := newTestEngine(t, extractor, cal)

	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, TimePref: "2pm", Deadline: "2026-09-04"}))

	reply, _, err := engine.HandleTurn(context.Background(), "conv-1", "Monday")
	require.NoError(t, err)
	assert.Contains(t, reply, "no slots are available before 2026-09-04 at 2pm")
}

func TestHandleTurnSuggestionsRequireCollectedState(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{RequestSuggestions: true},
	}}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, TimePref: "2pm"}))

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "what dates work?")
	require.NoError(t, err)
	assert.Contains(t, reply, "I need the meeting duration, preferred time, and deadline")
	assert.Equal(t, MeetingState{DurationMinutes: 30, TimePref: "2pm"}, state, "suggestion turns never mutate state")
}

func TestHandleTurnSuggestionsListDates(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{RequestSuggestions: true},
	}}
	engine, store := newTestEngine(t, extractor, &fakeCalendar{})

	require.NoError(t, store.Save(context.Background(), "conv-1",
		MeetingState{DurationMinutes: 30, TimePref: "2pm", Deadline: "2026-09-04"}))

	reply, _, err := engine.HandleTurn(context.Background(), "conv-1", "suggest some dates")
	require.NoError(t, err)
	assert.Contains(t, reply, "Here are available dates before your deadline:")
	assert.Contains(t, reply, "1. 2026-09-02 (Wednesday)")
	assert.Contains(t, reply, "2. 2026-09-03 (Thursday)")
	assert.Contains(t, reply, "3. 2026-09-04 (Friday)")
	assert.Contains(t, reply, "which date you'd prefer")
}

func TestHandleTurnExactWindowBusyDoesNotSubstitute(t *testing.T) {
	cal := &fakeCalendar{busy: []schedule.BusyInterval{{
		Start: time.Date(2026, time.September, 4, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.September, 4, 14, 15, 0, 0, time.UTC),
	}}}
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	engine, store := newTestEngine(t, extractor, cal)

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes Friday 2pm")
	require.NoError(t, err)
	assert.Empty(t, cal.created, "a busy exact window books nothing")
	assert.Contains(t, reply, "No available slots at that time. Please try another time.")
	assert.Equal(t, "2026-09-04", state.Date, "state is kept for a follow-up time")

	stored, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, state, stored)
}

func TestHandleTurnCalendarFailureDegradesToUnavailable(t *testing.T) {
	cal := &fakeCalendar{queryErr: errors.New("calendar down")}
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	engine, _ := newTestEngine(t, extractor, cal)

	reply, _, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes Friday 2pm")
	require.NoError(t, err, "calendar failure never escapes the turn")
	assert.Contains(t, reply, "No available slots at that time")
}

func TestHandleTurnBookingFailureRetainsStateForRetry(t *testing.T) {
	cal := &fakeCalendar{createErr: errors.New("insert rejected")}
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	engine, store := newTestEngine(t, extractor, cal)

	reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes Friday 2pm")
	require.NoError(t, err)
	assert.Contains(t, reply, "I couldn't create the meeting")

	want := MeetingState{DurationMinutes: 30, Date: "2026-09-04", TimePref: "2pm"}
	assert.Equal(t, want, state)
	stored, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, want, stored, "state survives for retry")
}

func TestHandleTurnBookingIsIdempotentAcrossRequests(t *testing.T) {
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	cal := &fakeCalendar{}
	engine, store := newTestEngine(t, extractor, cal)

	for i := 0; i < 2; i++ {
		reply, state, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes Friday 2pm")
		require.NoError(t, err)
		assert.Contains(t, reply, "Meeting scheduled")
		assert.Equal(t, MeetingState{}, state)

		stored, err := store.Load(context.Background(), "conv-1")
		require.NoError(t, err)
		assert.Equal(t, MeetingState{}, stored)
	}
	assert.Len(t, cal.created, 2, "two independent bookings")
}

func TestHandleTurnBooksFirstSlotEvenWhenLarger(t *testing.T) {
	// The whole requested window is free, so the first slot spans it fully;
	// the booking takes the slot bounds, not a trimmed sub-slot.
	extractor := &scriptedExtractor{queue: []ExtractedFields{
		{DurationMinutes: 30, Date: "Friday", TimePref: "2pm"},
	}}
	cal := &fakeCalendar{}
	engine, _ := newTestEngine(t, extractor, cal)

	_, _, err := engine.HandleTurn(context.Background(), "conv-1", "30 minutes Friday 2pm")
	require.NoError(t, err)
	require.Len(t, cal.created, 1)
	assert.Equal(t, 30*time.Minute, cal.created[0].end.Sub(cal.created[0].start))
}

func TestSnapshotAndReset(t *testing.T) {
	engine, store := newTestEngine(t, &scriptedExtractor{}, &fakeCalendar{})
	ctx := context.Background()

	want := MeetingState{DurationMinutes: 30, TimePref: "2pm"}
	require.NoError(t, store.Save(ctx, "conv-1", want))

	got, err := engine.Snapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, engine.Reset(ctx, "conv-1"))
	got, err = engine.Snapshot(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, MeetingState{}, got)
}
