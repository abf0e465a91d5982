package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/teemow/freetime/internal/calendar"
	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/google"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
)

// EventSource lists calendar events with a bearer token and exchanges
// refresh tokens for new access tokens. ListEvents must report an invalid or
// expired token with an error wrapping calendar.ErrAuthExpired.
type EventSource interface {
	ListEvents(ctx context.Context, accessToken string, timeMin, timeMax time.Time) ([]calendar.RawEvent, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// TokenManager fetches events and, when the access token has expired,
// refreshes it once, stores the new access token and retries once.
//
// Concurrent refreshes for the same user share a single token exchange. The
// exchange and the write-back run detached from the caller's cancellation so
// a refreshed token is always persisted.
type TokenManager struct {
	source  EventSource
	store   credentials.Store
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	group   singleflight.Group
}

// NewTokenManager creates a TokenManager. metrics and logger may be nil.
func NewTokenManager(source EventSource, store credentials.Store, metrics *instrumentation.Metrics, logger *slog.Logger) *TokenManager {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenManager{
		source:  source,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchEvents lists the events overlapping rng using cred.
//
// Errors are *Error values: Unauthorized when the token expired and could
// not be refreshed (or the retry failed), CalendarUnavailable for any other
// failure.
func (m *TokenManager) FetchEvents(ctx context.Context, userID string, cred credentials.Credential, rng TimeRange) ([]calendar.RawEvent, error) {
	logger := logging.WithUser(m.logger, userID)

	events, err := m.source.ListEvents(ctx, cred.AccessToken, rng.Start, rng.End)
	if err == nil {
		return events, nil
	}
	if !errors.Is(err, calendar.ErrAuthExpired) {
		logger.Warn("Calendar request failed", logging.Err(err))
		return nil, calendarUnavailable(err)
	}

	if cred.RefreshToken == "" {
		logger.Info("Access token expired and no refresh token is on file")
		return nil, unauthorized(err)
	}

	accessToken, err := m.refresh(ctx, userID, cred.RefreshToken)
	if err != nil {
		return nil, err
	}

	events, err = m.source.ListEvents(ctx, accessToken, rng.Start, rng.End)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, calendarUnavailable(ctxErr)
		}
		logger.Warn("Calendar request failed after token refresh", logging.Err(err))
		return nil, unauthorized(err)
	}
	return events, nil
}

// refresh exchanges refreshToken and persists the resulting access token.
func (m *TokenManager) refresh(ctx context.Context, userID, refreshToken string) (string, error) {
	logger := logging.WithUser(m.logger, userID)
	detached := context.WithoutCancel(ctx)

	ch := m.group.DoChan(userID, func() (any, error) {
		tok, err := m.source.Refresh(detached, refreshToken)
		if err == nil && (tok == nil || tok.AccessToken == "") {
			err = fmt.Errorf("token endpoint returned no access token")
		}
		if err != nil {
			result := instrumentation.OAuthResultFailure
			if errors.Is(err, google.ErrRefreshRejected) {
				result = instrumentation.OAuthResultExpired
			}
			m.metrics.RecordOAuthTokenRefresh(detached, result)
			return "", err
		}
		m.metrics.RecordOAuthTokenRefresh(detached, instrumentation.OAuthResultSuccess)

		// The retry can proceed with the new token even if it could not be stored.
		if err := m.store.SetAccessToken(detached, userID, tok.AccessToken); err != nil {
			logger.Warn("Failed to store refreshed access token", logging.Err(err))
		} else {
			logger.Debug("Stored refreshed access token", "token", logging.SanitizeToken(tok.AccessToken))
		}
		return tok.AccessToken, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			logger.Warn("Token refresh failed", logging.Err(res.Err))
			return "", unauthorized(res.Err)
		}
		if res.Shared {
			logger.Debug("Joined in-flight token refresh")
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", calendarUnavailable(ctx.Err())
	}
}
