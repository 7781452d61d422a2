package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"calendefi/internal/calendar"
)

// maxOccurrencesPerEvent caps recurrence expansion of a single VEVENT.
const maxOccurrencesPerEvent = 500

// vevent is the subset of a VEVENT needed to produce calendar events.
type vevent struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	RRule       string
	ExDates     []time.Time
}

// parseFeed parses an ICS payload. Malformed VEVENTs are logged and skipped.
func parseFeed(body []byte, logger *zap.Logger) ([]vevent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	var out []vevent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve)
		if err != nil {
			logger.Warn("skipping vevent", zap.Error(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	out.Start = start

	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	return out, nil
}

// parseICSTime parses a DATE or DATE-TIME value. Floating times use loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// expand turns VEVENTs into events overlapping [from, to]. Occurrences of a
// recurring VEVENT get the ID "<UID>/<unix start>" so each one is executed
// once.
func expand(events []vevent, from, to time.Time, logger *zap.Logger) []calendar.Event {
	var out []calendar.Event

	for _, ev := range events {
		if ev.RRule == "" {
			if overlaps(ev.Start, ev.End, from, to) {
				out = append(out, calendar.Event{
					ID:          ev.UID,
					Title:       ev.Summary,
					Description: ev.Description,
					Start:       ev.Start,
					End:         ev.End,
				})
			}
			continue
		}

		r, err := rrule.StrToRRule(ev.RRule)
		if err != nil {
			logger.Warn("skipping recurring event with bad RRULE",
				zap.String("uid", ev.UID), zap.String("rrule", ev.RRule), zap.Error(err))
			continue
		}
		r.DTStart(ev.Start)

		var set rrule.Set
		set.RRule(r)
		for _, ex := range ev.ExDates {
			set.ExDate(ex.In(ev.Start.Location()))
		}

		duration := ev.End.Sub(ev.Start)
		// Include occurrences that started before from but are still running
		starts := set.Between(from.Add(-duration).In(ev.Start.Location()), to.In(ev.Start.Location()), true)
		if len(starts) > maxOccurrencesPerEvent {
			logger.Warn("truncating recurrence expansion",
				zap.String("uid", ev.UID), zap.Int("occurrences", len(starts)))
			starts = starts[:maxOccurrencesPerEvent]
		}

		for _, start := range starts {
			out = append(out, calendar.Event{
				ID:          fmt.Sprintf("%s/%d", ev.UID, start.Unix()),
				Title:       ev.Summary,
				Description: ev.Description,
				Start:       start,
				End:         start.Add(duration),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
