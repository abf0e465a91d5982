package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
)

// AuthCodeURLer builds an OAuth consent URL for a state value.
type AuthCodeURLer interface {
	AuthCodeURL(state string) string
}

// Config holds the collaborators of a Service.
type Config struct {
	// Store holds per-user credentials. Required.
	Store credentials.Store

	// Source is the calendar to read. Required.
	Source EventSource

	// WorkingHours defaults to DefaultWorkingHours(time.UTC) when it has no weekdays.
	WorkingHours WorkingHours

	// DefaultLabel is used for untitled events. Defaults to DefaultLabel.
	DefaultLabel string

	// OAuth builds consent URLs for AuthorizationURL. Optional.
	OAuth AuthCodeURLer

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Service answers availability queries for a user. Every call reads the
// user's credential, fetches the current events and recomputes the answer;
// nothing is cached between calls.
type Service struct {
	store        credentials.Store
	tokens       *TokenManager
	policy       WorkingHours
	defaultLabel string
	oauth        AuthCodeURLer
	metrics      *instrumentation.Metrics
	logger       *slog.Logger
}

// NewService validates cfg and creates a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("event source is required")
	}
	if len(cfg.WorkingHours.Weekdays) == 0 && cfg.WorkingHours.StartHour == 0 && cfg.WorkingHours.EndHour == 0 {
		cfg.WorkingHours = DefaultWorkingHours(cfg.WorkingHours.Location)
	}
	if err := cfg.WorkingHours.Validate(); err != nil {
		return nil, fmt.Errorf("invalid working hours: %w", err)
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = DefaultLabel
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "availability")

	return &Service{
		store:        cfg.Store,
		tokens:       NewTokenManager(cfg.Source, cfg.Store, cfg.Metrics, logger),
		policy:       cfg.WorkingHours,
		defaultLabel: cfg.DefaultLabel,
		oauth:        cfg.OAuth,
		metrics:      cfg.Metrics,
		logger:       logger,
	}, nil
}

// WorkingHours returns the policy used by AvailableSlots.
func (s *Service) WorkingHours() WorkingHours {
	return s.policy
}

// AvailableSlots returns the free working-hour slots of at least
// minDurationHours within rng. It returns an empty slice, not an error, when
// no slot qualifies.
func (s *Service) AvailableSlots(ctx context.Context, userID string, rng TimeRange, minDurationHours float64) ([]FreeSlot, error) {
	var slots []FreeSlot
	attrs := instrumentation.NewSpanAttributeBuilder().WithMinDuration(minDurationHours)
	err := s.observe(ctx, instrumentation.QueryFreeSlots, userID, rng, attrs, func(ctx context.Context) error {
		if math.IsNaN(minDurationHours) || math.IsInf(minDurationHours, 0) || minDurationHours <= 0 {
			return invalidArgument("minimum duration must be a positive number of hours, got %v", minDurationHours)
		}
		busy, err := s.busy(ctx, userID, rng)
		if err != nil {
			return err
		}
		slots = ComputeFreeSlots(rng, busy, s.policy, minDurationHours)
		s.metrics.RecordFreeSlots(ctx, len(slots))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

// IsAvailable reports whether no event overlaps rng. Working hours are not
// applied, and events that only touch the range boundaries do not count.
func (s *Service) IsAvailable(ctx context.Context, userID string, rng TimeRange) (bool, error) {
	available := true
	err := s.observe(ctx, instrumentation.QueryIsAvailable, userID, rng, nil, func(ctx context.Context) error {
		busy, err := s.busy(ctx, userID, rng)
		if err != nil {
			return err
		}
		for _, b := range busy {
			if b.Overlaps(rng) {
				available = false
				break
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return available, nil
}

// BusyTimes returns the busy intervals overlapping rng, each labelled with
// its event title or the default label.
func (s *Service) BusyTimes(ctx context.Context, userID string, rng TimeRange) ([]BusyInterval, error) {
	out := []BusyInterval{}
	err := s.observe(ctx, instrumentation.QueryBusyTimes, userID, rng, nil, func(ctx context.Context) error {
		busy, err := s.busy(ctx, userID, rng)
		if err != nil {
			return err
		}
		for _, b := range busy {
			if b.Overlaps(rng) {
				out = append(out, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AuthorizationURL returns the OAuth consent URL and the random state value
// embedded in it.
func (s *Service) AuthorizationURL() (string, string, error) {
	if s.oauth == nil {
		return "", "", newError(KindNotConfigured, "oauth client is not configured", nil)
	}
	state := uuid.NewString()
	return s.oauth.AuthCodeURL(state), state, nil
}

// busy loads the user's credential, fetches events and normalizes them.
func (s *Service) busy(ctx context.Context, userID string, rng TimeRange) ([]BusyInterval, error) {
	cred, err := s.store.Get(ctx, userID)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, notConfigured(err)
	}
	if err != nil {
		logging.WithUser(s.logger, userID).Warn("Failed to read credential", logging.Err(err))
		return nil, calendarUnavailable(err)
	}
	if cred.AccessToken == "" && cred.RefreshToken == "" {
		return nil, notConfigured(nil)
	}

	events, err := s.tokens.FetchEvents(ctx, userID, cred, rng)
	if err != nil {
		return nil, err
	}
	return Normalize(events, s.policy.location(), s.defaultLabel), nil
}

// observe validates the common arguments and wraps fn with a span, query
// metrics and a debug log line.
func (s *Service) observe(ctx context.Context, query, userID string, rng TimeRange, attrs *instrumentation.SpanAttributeBuilder, fn func(context.Context) error) error {
	start := time.Now()
	if attrs == nil {
		attrs = instrumentation.NewSpanAttributeBuilder()
	}
	attrs.WithUserHash(logging.AnonymizeUser(userID)).WithRange(rng.Start, rng.End)

	ctx, span := instrumentation.StartQuerySpan(ctx, query, attrs.Build()...)
	defer span.End()

	err := validateRequest(userID, rng)
	if err == nil {
		err = fn(ctx)
	}

	status := instrumentation.StatusSuccess
	if err != nil {
		status = string(KindOf(err))
		if status == "" {
			status = instrumentation.StatusError
		}
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordQuery(ctx, query, status, time.Since(start))

	s.logger.Debug("Availability query",
		logging.Operation(query),
		logging.UserHash(userID),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, time.Since(start)),
	)
	return err
}

func validateRequest(userID string, rng TimeRange) error {
	if err := credentials.ValidateUserID(userID); err != nil {
		return newError(KindInvalidArgument, err.Error(), nil)
	}
	return rng.Validate()
}
