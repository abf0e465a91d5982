package availability

import (
	"context"
	"errors"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/freetime/internal/calendar"
	"github.com/teemow/freetime/internal/credentials"
)

type fakeOAuth struct{}

func (fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func newTestService(t *testing.T, source EventSource, store credentials.Store) *Service {
	t.Helper()
	svc, err := NewService(Config{
		Store:  store,
		Source: source,
		OAuth:  fakeOAuth{},
		Logger: discardLogger(),
	})
	require.NoError(t, err)
	return svc
}

func connectedService(t *testing.T, events ...calendar.RawEvent) (*Service, *fakeSource) {
	t.Helper()
	source := newFakeSource("good")
	source.events = events
	store := seededStore(t, credentials.Credential{AccessToken: "good", RefreshToken: "refresh"})
	return newTestService(t, source, store), source
}

func TestNewService(t *testing.T) {
	store := credentials.NewMemoryStore()
	source := newFakeSource()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{Store: store, Source: source}, false},
		{"missing store", Config{Source: source}, true},
		{"missing source", Config{Store: store}, true},
		{"bad working hours", Config{Store: store, Source: source, WorkingHours: WorkingHours{Weekdays: DefaultWeekdays, StartHour: 17, EndHour: 9}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultWorkingHours(nil), svc.WorkingHours())
		})
	}
}

func TestService_AvailableSlots(t *testing.T) {
	svc, _ := connectedService(t,
		timed("Planning", at(4, 10, 0), at(4, 11, 0)),
		allDay("Offsite", date(7), date(8)),
	)

	slots, err := svc.AvailableSlots(context.Background(), testUser, TimeRange{Start: at(4, 8, 0), End: at(7, 18, 0)}, 1)
	require.NoError(t, err)

	want := []FreeSlot{
		slot(at(4, 9, 0), at(4, 10, 0)),
		slot(at(4, 11, 0), at(4, 17, 0)),
		slot(at(5, 9, 0), at(5, 17, 0)),
		slot(at(6, 9, 0), at(6, 17, 0)),
	}
	require.Len(t, slots, len(want))
	for i := range want {
		assert.True(t, want[i].Start.Equal(slots[i].Start))
		assert.True(t, want[i].End.Equal(slots[i].End))
	}
}

func TestService_AvailableSlotsNoneQualify(t *testing.T) {
	svc, _ := connectedService(t)

	slots, err := svc.AvailableSlots(context.Background(), testUser, TimeRange{Start: at(4, 0, 0), End: at(9, 0, 0)}, 9)
	require.NoError(t, err)
	assert.NotNil(t, slots)
	assert.Empty(t, slots)
}

func TestService_InvalidArguments(t *testing.T) {
	svc, source := connectedService(t)
	ctx := context.Background()
	valid := TimeRange{Start: at(4, 9, 0), End: at(4, 17, 0)}
	reversed := TimeRange{Start: at(4, 17, 0), End: at(4, 9, 0)}

	for _, minDuration := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := svc.AvailableSlots(ctx, testUser, valid, minDuration)
		assert.ErrorIs(t, err, ErrInvalidArgument, "min duration %v", minDuration)
	}

	_, err := svc.AvailableSlots(ctx, testUser, reversed, 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.IsAvailable(ctx, testUser, reversed)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.BusyTimes(ctx, "", valid)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = svc.BusyTimes(ctx, "../etc/passwd", valid)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, 0, source.listCalls(), "invalid requests must not reach the calendar")
}

func TestService_NotConfigured(t *testing.T) {
	svc := newTestService(t, newFakeSource(), credentials.NewMemoryStore())
	ctx := context.Background()
	rng := TimeRange{Start: at(4, 9, 0), End: at(4, 17, 0)}

	_, err := svc.AvailableSlots(ctx, testUser, rng, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.IsAvailable(ctx, testUser, rng)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = svc.BusyTimes(ctx, testUser, rng)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestService_IsAvailable(t *testing.T) {
	svc, _ := connectedService(t,
		timed("Planning", at(4, 10, 0), at(4, 11, 0)),
		allDay("Saturday trip", date(9), date(10)),
	)
	ctx := context.Background()

	tests := []struct {
		name string
		rng  TimeRange
		want bool
	}{
		{"overlapping", TimeRange{Start: at(4, 10, 30), End: at(4, 12, 0)}, false},
		{"containing", TimeRange{Start: at(4, 9, 0), End: at(4, 12, 0)}, false},
		{"touching end", TimeRange{Start: at(4, 11, 0), End: at(4, 12, 0)}, true},
		{"touching start", TimeRange{Start: at(4, 9, 0), End: at(4, 10, 0)}, true},
		{"outside working hours", TimeRange{Start: at(4, 20, 0), End: at(4, 22, 0)}, true},
		{"weekend event", TimeRange{Start: at(9, 12, 0), End: at(9, 13, 0)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAvailable(ctx, testUser, tt.rng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_BusyTimes(t *testing.T) {
	svc, _ := connectedService(t,
		timed("", at(4, 14, 0), at(4, 15, 0)),
		timed("Planning", at(4, 10, 0), at(4, 11, 0)),
		timed("Yesterday", at(3, 10, 0), at(3, 11, 0)),
	)

	busy, err := svc.BusyTimes(context.Background(), testUser, TimeRange{Start: at(4, 0, 0), End: at(5, 0, 0)})
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, "Planning", busy[0].Label)
	assert.Equal(t, DefaultLabel, busy[1].Label)
	assert.True(t, busy[1].Start.Equal(at(4, 14, 0)))
}

func TestService_BusyTimesEmpty(t *testing.T) {
	svc, _ := connectedService(t)

	busy, err := svc.BusyTimes(context.Background(), testUser, TimeRange{Start: at(4, 0, 0), End: at(5, 0, 0)})
	require.NoError(t, err)
	assert.NotNil(t, busy)
	assert.Empty(t, busy)
}

func TestService_Unauthorized(t *testing.T) {
	source := newFakeSource()
	store := seededStore(t, credentials.Credential{AccessToken: "stale"})
	svc := newTestService(t, source, store)

	_, err := svc.IsAvailable(context.Background(), testUser, TimeRange{Start: at(4, 9, 0), End: at(4, 10, 0)})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestService_CalendarUnavailableHidesDetail(t *testing.T) {
	source := newFakeSource("good")
	source.listErr = errors.New("upstream said: internal quota detail")
	store := seededStore(t, credentials.Credential{AccessToken: "good"})
	svc := newTestService(t, source, store)

	_, err := svc.BusyTimes(context.Background(), testUser, TimeRange{Start: at(4, 9, 0), End: at(4, 10, 0)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCalendarUnavailable)
	assert.NotContains(t, err.Error(), "quota")
}

func TestService_RefreshesThroughFacade(t *testing.T) {
	source := newFakeSource("fresh-access")
	source.events = []calendar.RawEvent{timed("Planning", at(4, 10, 0), at(4, 11, 0))}
	store := seededStore(t, credentials.Credential{AccessToken: "stale", RefreshToken: "refresh"})
	svc := newTestService(t, source, store)
	ctx := context.Background()
	rng := TimeRange{Start: at(4, 9, 0), End: at(4, 17, 0)}

	available, err := svc.IsAvailable(ctx, testUser, rng)
	require.NoError(t, err)
	assert.False(t, available)

	// The stored token is used on the next call without another refresh.
	_, err = svc.IsAvailable(ctx, testUser, rng)
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.refreshCalls.Load())
	assert.Equal(t, []string{"stale", "fresh-access", "fresh-access"}, source.tokensSeen())
}

func TestService_AuthorizationURL(t *testing.T) {
	svc, _ := connectedService(t)

	authURL, state, err := svc.AuthorizationURL()
	require.NoError(t, err)
	assert.NotEmpty(t, state)
	assert.Contains(t, authURL, url.QueryEscape(state))

	_, other, err := svc.AuthorizationURL()
	require.NoError(t, err)
	assert.NotEqual(t, state, other)
}

func TestService_AuthorizationURLWithoutOAuth(t *testing.T) {
	svc, err := NewService(Config{
		Store:  credentials.NewMemoryStore(),
		Source: newFakeSource(),
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	_, _, err = svc.AuthorizationURL()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestService_WorkingHoursZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	svc, err := NewService(Config{
		Store:        seededStore(t, credentials.Credential{AccessToken: "good"}),
		Source:       newFakeSource("good"),
		WorkingHours: DefaultWorkingHours(loc),
		Logger:       discardLogger(),
	})
	require.NoError(t, err)

	slots, err := svc.AvailableSlots(context.Background(), testUser, TimeRange{Start: at(4, 0, 0), End: at(5, 0, 0)}, 1)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].Start.Equal(time.Date(2024, time.March, 4, 9, 0, 0, 0, loc)))
	assert.Equal(t, loc, slots[0].Start.Location())
}
