package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"

	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
)

const icsDateLayout = "20060102"

// ICSSource reads events from an iCalendar export. Access tokens are
// ignored, which makes it usable without any OAuth setup.
type ICSSource struct {
	path    string
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// NewICSSource creates a source for the .ics file at path.
func NewICSSource(path string, metrics *instrumentation.Metrics, logger *slog.Logger) *ICSSource {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ICSSource{
		path:    path,
		metrics: metrics,
		logger:  logging.WithService(logger, instrumentation.SourceICS),
	}
}

// ListEvents returns the events of the file that overlap [timeMin, timeMax).
// All-day events are kept when their dates touch the window, since their
// exact instants depend on the working-hours time zone.
func (s *ICSSource) ListEvents(ctx context.Context, _ string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.SourceICS, instrumentation.OperationListEvents)
	defer span.End()

	events, err := s.listEvents(ctx, timeMin, timeMax)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrEventCount, len(events)))
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordCalendarOperation(ctx, instrumentation.SourceICS, instrumentation.OperationListEvents, status, time.Since(start))
	return events, err
}

func (s *ICSSource) listEvents(ctx context.Context, timeMin, timeMax time.Time) ([]RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ics file: %w", err)
	}
	defer f.Close()

	all, err := ParseICS(f, s.logger)
	if err != nil {
		return nil, err
	}

	events := make([]RawEvent, 0, len(all))
	for _, ev := range all {
		if overlapsWindow(ev, timeMin, timeMax) {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Refresh always fails: an export file has no token endpoint.
func (s *ICSSource) Refresh(context.Context, string) (*oauth2.Token, error) {
	return nil, ErrRefreshUnsupported
}

func overlapsWindow(ev RawEvent, timeMin, timeMax time.Time) bool {
	// A day of slack on each side covers any UTC offset for all-day values.
	start := ev.Start.In(time.UTC)
	end := ev.End.In(time.UTC)
	if ev.Start.AllDay {
		start = start.AddDate(0, 0, -1)
	}
	if ev.End.AllDay {
		end = end.AddDate(0, 0, 1)
	}
	return start.Before(timeMax) && end.After(timeMin)
}

// ParseICS parses an iCalendar stream into raw events. Cancelled events are
// skipped; malformed events are logged and skipped. Recurrence rules are not
// expanded.
func ParseICS(r io.Reader, logger *slog.Logger) ([]RawEvent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ics: %w", err)
	}

	var events []RawEvent
	for _, ve := range cal.Events() {
		if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
			continue
		}
		ev, err := parseVEvent(ve)
		if err != nil {
			logger.Warn("Skipping malformed ics event", logging.Err(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (RawEvent, error) {
	var out RawEvent
	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.ID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART")
	}

	if isDateValue(startProp) {
		d, err := parseICSDate(startProp.Value)
		if err != nil {
			return out, err
		}
		out.Start = OnDate(d)

		// DTEND is exclusive; without it or DURATION the event covers its
		// start date.
		out.End = OnDate(DateOf(d.Midnight(time.UTC).AddDate(0, 0, 1)))
		if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
			ed, err := parseICSDate(endProp.Value)
			if err != nil {
				return out, err
			}
			out.End = OnDate(ed)
		} else if durProp := ve.GetProperty(ical.ComponentPropertyDuration); durProp != nil {
			dur, err := parseICSDuration(durProp.Value)
			if err != nil {
				return out, err
			}
			out.End = OnDate(DateOf(d.Midnight(time.UTC).AddDate(0, 0, dur.days)))
		}
		return out, nil
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, fmt.Errorf("invalid DTSTART: %w", err)
	}
	out.Start = At(start)
	out.End = At(start)
	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return out, fmt.Errorf("invalid DTEND: %w", err)
		}
		out.End = At(end)
	} else if durProp := ve.GetProperty(ical.ComponentPropertyDuration); durProp != nil {
		dur, err := parseICSDuration(durProp.Value)
		if err != nil {
			return out, err
		}
		out.End = At(dur.addTo(start))
	}
	return out, nil
}

// icsDuration is an RFC 5545 dur-value. Days are nominal so that a "P1D"
// event keeps its wall-clock time across DST changes.
type icsDuration struct {
	days  int
	clock time.Duration
}

func (d icsDuration) addTo(t time.Time) time.Time {
	return t.AddDate(0, 0, d.days).Add(d.clock)
}

// parseICSDuration parses values such as "PT1H30M", "P1D", "P2W" and
// "-PT15M".
func parseICSDuration(v string) (icsDuration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	invalid := fmt.Errorf("invalid duration %q", v)

	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return icsDuration{}, invalid
	}
	s = s[1:]

	var d icsDuration
	inTime := false
	for len(s) > 0 {
		if s[0] == 'T' {
			if inTime || len(s) == 1 {
				return icsDuration{}, invalid
			}
			inTime = true
			s = s[1:]
			continue
		}
		i := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == 0 || i == len(s) {
			return icsDuration{}, invalid
		}
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return icsDuration{}, invalid
		}
		switch unit := s[i]; {
		case unit == 'W' && !inTime:
			d.days += 7 * n
		case unit == 'D' && !inTime:
			d.days += n
		case unit == 'H' && inTime:
			d.clock += time.Duration(n) * time.Hour
		case unit == 'M' && inTime:
			d.clock += time.Duration(n) * time.Minute
		case unit == 'S' && inTime:
			d.clock += time.Duration(n) * time.Second
		default:
			return icsDuration{}, invalid
		}
		s = s[i+1:]
	}

	d.days *= sign
	d.clock *= time.Duration(sign)
	return d, nil
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func parseICSDate(v string) (Date, error) {
	t, err := time.Parse(icsDateLayout, strings.TrimSpace(v))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return DateOf(t), nil
}
