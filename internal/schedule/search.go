package schedule

import (
	"context"
	"time"

	"github.com/njwalker/meetingbot/internal/timeparse"
	"github.com/njwalker/meetingbot/pkg/logging"
)

const (
	// defaultMaxResults caps how many candidate dates a search returns.
	defaultMaxResults = 7
	// defaultHorizonDays caps how many calendar days a search scans.
	defaultHorizonDays = 14
)

// FreeBusyClient queries a calendar for occupied intervals inside a window.
type FreeBusyClient interface {
	QueryBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error)
}

// AvailableDate is a calendar day with at least one free slot of the
// requested duration at the preferred time.
type AvailableDate struct {
	Date      string `json:"date"`
	Weekday   string `json:"day"`
	Formatted string `json:"formatted"`
}

// Searcher scans upcoming days for availability at a preferred time of day.
type Searcher struct {
	freebusy    FreeBusyClient
	logger      *logging.Logger
	maxResults  int
	horizonDays int
}

// NewSearcher creates a Searcher over the given free/busy capability.
func NewSearcher(freebusy FreeBusyClient, logger *logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Searcher{
		freebusy:    freebusy,
		logger:      logger,
		maxResults:  defaultMaxResults,
		horizonDays: defaultHorizonDays,
	}
}

// WithLimits overrides the result and scan-day caps. Non-positive values
// keep the defaults.
func (s *Searcher) WithLimits(maxResults, horizonDays int) *Searcher {
	if maxResults > 0 {
		s.maxResults = maxResults
	}
	if horizonDays > 0 {
		s.horizonDays = horizonDays
	}
	return s
}

// Search returns up to maxResults dates with a free slot of the given
// duration at the preferred time, scanning from the day of now forward. The
// scan covers at most horizonDays calendar days and never passes deadline
// (zero deadline means unbounded). Today is skipped when the preferred time
// has already elapsed. A single day's calendar failure is logged and that
// day skipped; it never aborts the search.
func (s *Searcher) Search(ctx context.Context, duration time.Duration, timePref string, deadline, now time.Time) ([]AvailableDate, error) {
	hour, minute, err := timeparse.ParseTimeOfDay(timePref)
	if err != nil {
		return nil, err
	}

	today := timeparse.Midnight(now)
	daysToCheck := s.horizonDays
	if !deadline.IsZero() {
		untilDeadline := int(timeparse.Midnight(deadline).Sub(today)/(24*time.Hour)) + 1
		if untilDeadline < daysToCheck {
			daysToCheck = untilDeadline
		}
	}

	var available []AvailableDate
	for i := 0; i < daysToCheck && len(available) < s.maxResults; i++ {
		day := today.AddDate(0, 0, i)
		if !deadline.IsZero() && day.After(timeparse.Midnight(deadline)) {
			break
		}

		start := timeparse.At(day, hour, minute)
		if day.Equal(today) && !now.UTC().Before(start) {
			continue
		}
		end := start.Add(duration)

		busy, err := s.freebusy.QueryBusy(ctx, start, end)
		if err != nil {
			s.logger.Warn("availability check failed for day",
				"date", timeparse.FormatDate(day),
				"error", err,
			)
			continue
		}

		slots, err := FreeIntervals(start, end, busy, duration)
		if err != nil {
			return nil, err
		}
		if len(slots) > 0 {
			available = append(available, AvailableDate{
				Date:      timeparse.FormatDate(day),
				Weekday:   day.Weekday().String(),
				Formatted: timeparse.FormatDate(day) + " (" + day.Weekday().String() + ")",
			})
		}
	}

	return available, nil
}
