package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teemow/freetime/internal/availability"
	"github.com/teemow/freetime/internal/calendar"
	"github.com/teemow/freetime/internal/config"
	"github.com/teemow/freetime/internal/credentials"
	"github.com/teemow/freetime/internal/google"
	"github.com/teemow/freetime/internal/instrumentation"
	"github.com/teemow/freetime/internal/logging"
)

// icsAccessToken is stored for the ICS user; the ICS source ignores tokens.
const icsAccessToken = "ics"

// serviceOptions selects where events come from.
type serviceOptions struct {
	// ICSPath reads events from an iCalendar export instead of Google.
	ICSPath string

	// User is seeded into an in-memory store when ICSPath is set.
	User string

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// newService wires the availability service from the configuration. The
// returned close function is never nil.
func newService(ctx context.Context, cfg *config.Config, opts serviceOptions) (*availability.Service, func(), error) {
	noop := func() {}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, noop, err
	}

	svcConfig := availability.Config{
		WorkingHours: policy,
		DefaultLabel: cfg.DefaultLabel,
		Metrics:      opts.Metrics,
		Logger:       opts.Logger,
	}

	oauthClient, oauthErr := google.NewOAuthClient(cfg.OAuth())
	if oauthErr == nil {
		svcConfig.OAuth = oauthClient
	} else {
		opts.Logger.Debug("Google OAuth client not configured", logging.Err(oauthErr))
	}

	closeStore := noop
	if opts.ICSPath != "" {
		if err := credentials.ValidateUserID(opts.User); err != nil {
			return nil, noop, fmt.Errorf("--user is required with --ics: %w", err)
		}
		store := credentials.NewMemoryStore()
		store.SetLogger(logging.NewSlogAdapter(opts.Logger))
		if err := store.Save(ctx, opts.User, credentials.Credential{AccessToken: icsAccessToken}); err != nil {
			return nil, noop, err
		}
		svcConfig.Store = store
		svcConfig.Source = calendar.NewICSSource(opts.ICSPath, opts.Metrics, opts.Logger)
	} else {
		store, closeFn, err := cfg.NewStore(logging.NewSlogAdapter(opts.Logger))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create credential store: %w", err)
		}
		closeStore = closeFn

		var refresher calendar.TokenRefresher
		if oauthClient != nil {
			refresher = oauthClient
		}
		svcConfig.Store = store
		svcConfig.Source = calendar.NewClient(refresher,
			calendar.WithCalendarID(cfg.Google.CalendarID),
			calendar.WithMetrics(opts.Metrics),
			calendar.WithLogger(opts.Logger),
		)
	}

	svc, err := availability.NewService(svcConfig)
	if err != nil {
		closeStore()
		return nil, noop, err
	}
	return svc, closeStore, nil
}
