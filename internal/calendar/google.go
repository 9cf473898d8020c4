// Package calendar adapts the Google Calendar API to the free/busy and
// booking capabilities the conversation engine consumes.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/njwalker/meetingbot/internal/schedule"
	"github.com/njwalker/meetingbot/pkg/logging"
)

// BookedEvent is the confirmation returned after an event is created.
type BookedEvent struct {
	EventID      string `json:"event_id"`
	CalendarLink string `json:"calendar_link"`
	MeetLink     string `json:"meet_link,omitempty"`
}

// Client wraps the Calendar v3 service for a single calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// NewClient builds a calendar client. Auth and endpoint overrides are
// supplied through opts (credentials file, API key, or a test endpoint).
func NewClient(ctx context.Context, calendarID string, logger *logging.Logger, opts ...option.ClientOption) (*Client, error) {
	if strings.TrimSpace(calendarID) == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = logging.Default()
	}

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create service: %w", err)
	}

	return &Client{
		svc:        svc,
		calendarID: calendarID,
		logger:     logger,
	}, nil
}

// QueryBusy returns the busy intervals on the calendar within [start, end).
func (c *Client) QueryBusy(ctx context.Context, start, end time.Time) ([]schedule.BusyInterval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: c.calendarID}},
	}

	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: freebusy query failed: %w", err)
	}

	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, errors.New("calendar: freebusy response missing calendar data")
	}

	busy := make([]schedule.BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		bStart, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("calendar: malformed busy start %q: %w", period.Start, err)
		}
		bEnd, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("calendar: malformed busy end %q: %w", period.End, err)
		}
		busy = append(busy, schedule.BusyInterval{Start: bStart, End: bEnd})
	}

	c.logger.Debug("freebusy query",
		"calendar_id", c.calendarID,
		"window_start", req.TimeMin,
		"window_end", req.TimeMax,
		"busy_periods", len(busy),
	)
	return busy, nil
}

// CreateEvent books [start, end) on the calendar with a Meet conference and
// reminder overrides, returning the confirmation links.
func (c *Client) CreateEvent(ctx context.Context, start, end time.Time, summary, description string, attendees []string) (*BookedEvent, error) {
	if summary == "" {
		summary = "Scheduled Meeting"
	}

	event := &gcal.Event{
		Summary:     summary,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: start.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &gcal.EventDateTime{
			DateTime: end.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             fmt.Sprintf("meeting-%d", time.Now().UnixNano()),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}

	for _, email := range attendees {
		email = strings.TrimSpace(email)
		if email == "" {
			continue
		}
		event.Attendees = append(event.Attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("calendar: event insert failed: %w", err)
	}

	booked := &BookedEvent{
		EventID:      created.Id,
		CalendarLink: created.HtmlLink,
	}
	if created.ConferenceData != nil {
		for _, entry := range created.ConferenceData.EntryPoints {
			if entry.EntryPointType == "video" {
				booked.MeetLink = entry.Uri
				break
			}
		}
	}

	c.logger.Info("event created",
		"calendar_id", c.calendarID,
		"event_id", booked.EventID,
		"start", event.Start.DateTime,
		"end", event.End.DateTime,
	)
	return booked, nil
}
