package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/teemow/freetime/internal/google"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
)

// DefaultCalendarID selects the user's primary calendar.
const DefaultCalendarID = "primary"

// Google Calendar returns at most 2500 events per page.
const maxResultsPerPage = 2500

const statusCancelled = "cancelled"

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// Client reads events from Google Calendar on behalf of a user whose access
// token is passed on every call.
type Client struct {
	refresher  TokenRefresher
	calendarID string
	endpoint   string
	metrics    *instrumentation.Metrics
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCalendarID selects the calendar to read. Defaults to DefaultCalendarID.
func WithCalendarID(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.calendarID = id
		}
	}
}

// WithEndpoint overrides the Calendar API base URL.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Google Calendar event source. refresher is used by
// Refresh and is typically a *google.OAuthClient.
func NewClient(refresher TokenRefresher, opts ...ClientOption) *Client {
	c := &Client{
		refresher:  refresher,
		calendarID: DefaultCalendarID,
		metrics:    &instrumentation.Metrics{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithService(c.logger, instrumentation.SourceGoogle)
	return c
}

// CalendarID returns the calendar this client reads.
func (c *Client) CalendarID() string {
	return c.calendarID
}

func (c *Client) service(ctx context.Context, accessToken string) (*calendar.Service, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(google.HTTPClient(ctx, accessToken)),
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return svc, nil
}

// ListEvents lists the single (expanded) events overlapping [timeMin, timeMax).
// Cancelled events are skipped. An invalid or expired token yields an error
// wrapping ErrAuthExpired.
func (c *Client) ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.SourceGoogle, instrumentation.OperationListEvents,
		attribute.String("calendar.id", c.calendarID))
	defer span.End()

	events, err := c.listEvents(ctx, accessToken, timeMin, timeMax)

	status := instrumentation.StatusSuccess
	switch {
	case errors.Is(err, ErrAuthExpired):
		status = instrumentation.StatusAuthExpired
	case err != nil:
		status = instrumentation.StatusError
	}
	c.metrics.RecordCalendarOperation(ctx, instrumentation.SourceGoogle, instrumentation.OperationListEvents, status, time.Since(start))

	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrEventCount, len(events)))
	instrumentation.SetSpanSuccess(span)
	return events, nil
}

func (c *Client) listEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]RawEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(c.calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(maxResultsPerPage)

	var events []RawEvent
	err = call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			if item == nil || item.Status == statusCancelled {
				continue
			}
			ev, err := toRawEvent(item)
			if err != nil {
				c.logger.Warn("Skipping malformed event", "event_id", item.Id, logging.Err(err))
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}
	return events, nil
}

// Refresh exchanges refreshToken for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if c.refresher == nil {
		return nil, ErrRefreshUnsupported
	}

	start := time.Now()
	ctx, span := instrumentation.StartCalendarSpan(ctx, instrumentation.SourceGoogle, instrumentation.OperationRefresh)
	defer span.End()

	tok, err := c.refresher.Refresh(ctx, refreshToken)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordCalendarOperation(ctx, instrumentation.SourceGoogle, instrumentation.OperationRefresh, status, time.Since(start))

	return tok, err
}

// classifyError maps a 401 from the API to ErrAuthExpired.
func classifyError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrAuthExpired, gerr.Message)
	}
	return fmt.Errorf("failed to list events: %w", err)
}

func toRawEvent(item *calendar.Event) (RawEvent, error) {
	start, err := toEventTime(item.Start)
	if err != nil {
		return RawEvent{}, fmt.Errorf("start: %w", err)
	}
	end, err := toEventTime(item.End)
	if err != nil {
		return RawEvent{}, fmt.Errorf("end: %w", err)
	}
	return RawEvent{
		ID:      item.Id,
		Summary: item.Summary,
		Start:   start,
		End:     end,
	}, nil
}

func toEventTime(dt *calendar.EventDateTime) (EventTime, error) {
	if dt == nil {
		return EventTime{}, errors.New("missing time")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return EventTime{}, fmt.Errorf("invalid date-time %q: %w", dt.DateTime, err)
		}
		return At(t), nil
	}
	if dt.Date != "" {
		d, err := ParseDate(dt.Date)
		if err != nil {
			return EventTime{}, err
		}
		return OnDate(d), nil
	}
	return EventTime{}, errors.New("neither date nor dateTime set")
}
