package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietPref(tz string) Preference {
	pref := DefaultPreference(7)
	pref.QuietHoursEnabled = true
	pref.QuietStart = "22:00"
	pref.QuietEnd = "08:00"
	pref.Timezone = tz
	return pref
}

func healthEvent(country string) Event {
	return Event{ID: "evt-1", Category: CategoryCountryHealth, CountryCode: country, Title: "CI is struggling"}
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 4, 1, hour, minute, 0, 0, time.UTC)
}

func TestRouteQuietHoursDefersUntilNextEnd(t *testing.T) {
	decision := Route(healthEvent("CI"), quietPref("UTC"), at(23, 10))

	assert.True(t, decision.Deliver)
	assert.False(t, decision.DeliverNow)
	require.NotNil(t, decision.DeferredUntil)
	assert.Equal(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC), *decision.DeferredUntil)
	assert.Equal(t, ReasonQuietHours, decision.Reason)
	assert.Equal(t, []Channel{ChannelEmail, ChannelPush, ChannelInApp}, decision.Channels)
}

func TestRouteOutsideQuietHoursDeliversNow(t *testing.T) {
	decision := Route(healthEvent("CI"), quietPref("UTC"), at(9, 0))

	assert.True(t, decision.Deliver)
	assert.True(t, decision.DeliverNow)
	assert.Nil(t, decision.DeferredUntil)
}

func TestRouteQuietHoursBoundaries(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		deferred  bool
		wantUntil time.Time
	}{
		{name: "21:59 before window", now: at(21, 59)},
		{name: "22:00 window start", now: at(22, 0), deferred: true, wantUntil: time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)},
		{name: "07:59 last minute", now: at(7, 59), deferred: true, wantUntil: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)},
		{name: "08:00 window end", now: at(8, 0)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Route(healthEvent("CI"), quietPref("UTC"), tc.now)
			require.True(t, decision.Deliver)
			if !tc.deferred {
				assert.True(t, decision.DeliverNow)
				return
			}
			assert.False(t, decision.DeliverNow)
			require.NotNil(t, decision.DeferredUntil)
			assert.Equal(t, tc.wantUntil, *decision.DeferredUntil)
		})
	}
}

func TestInQuietHours(t *testing.T) {
	start, end := 22*60, 8*60
	assert.False(t, InQuietHours(start, end, 21*60+59))
	assert.True(t, InQuietHours(start, end, 22*60))
	assert.True(t, InQuietHours(start, end, 0))
	assert.True(t, InQuietHours(start, end, 7*60+59))
	assert.False(t, InQuietHours(start, end, 8*60))

	// same-day window
	assert.True(t, InQuietHours(13*60, 14*60, 13*60+30))
	assert.False(t, InQuietHours(13*60, 14*60, 14*60))

	// empty window
	assert.False(t, InQuietHours(9*60, 9*60, 9*60))
}

func TestRouteUsesRecipientTimezone(t *testing.T) {
	// 21:30 UTC is 22:30 in Lagos (UTC+1).
	decision := Route(healthEvent("NG"), quietPref("Africa/Lagos"), at(21, 30))

	require.False(t, decision.DeliverNow)
	require.NotNil(t, decision.DeferredUntil)
	assert.Equal(t, time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC), *decision.DeferredUntil)
}

func TestRouteUnknownTimezoneFallsBackToUTC(t *testing.T) {
	decision := Route(healthEvent("CI"), quietPref("Mars/Olympus"), at(23, 0))

	require.NotNil(t, decision.DeferredUntil)
	assert.Equal(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC), *decision.DeferredUntil)
}

func TestRouteDrops(t *testing.T) {
	t.Run("category disabled", func(t *testing.T) {
		pref := DefaultPreference(7)
		pref.Categories = map[string]bool{string(CategoryCountryHealth): false}
		decision := Route(healthEvent("CI"), pref, at(12, 0))
		assert.False(t, decision.Deliver)
		assert.Equal(t, ReasonCategoryDisabled, decision.Reason)
	})

	t.Run("country not monitored", func(t *testing.T) {
		pref := DefaultPreference(7)
		pref.MonitoredCountries = []string{"BJ"}
		decision := Route(healthEvent("CI"), pref, at(12, 0))
		assert.False(t, decision.Deliver)
		assert.Equal(t, ReasonCountryNotMonitored, decision.Reason)
	})

	t.Run("empty monitored list drops everything", func(t *testing.T) {
		pref := DefaultPreference(7)
		pref.MonitoredCountries = []string{}
		decision := Route(healthEvent("CI"), pref, at(12, 0))
		assert.False(t, decision.Deliver)
	})

	t.Run("no channels", func(t *testing.T) {
		pref := DefaultPreference(7)
		pref.Email, pref.Push, pref.InApp = false, false, false
		decision := Route(healthEvent("CI"), pref, at(12, 0))
		assert.False(t, decision.Deliver)
		assert.Equal(t, ReasonNoChannels, decision.Reason)
	})
}

func TestRouteOtherCategoryStillEnabled(t *testing.T) {
	pref := DefaultPreference(7)
	pref.Categories = map[string]bool{string(CategoryCountryHealth): false}
	event := healthEvent("CI")
	event.Category = CategoryCountryRecovery

	decision := Route(event, pref, at(12, 0))
	assert.True(t, decision.DeliverNow)
}

func TestParseClock(t *testing.T) {
	minute, err := ParseClock("07:59")
	require.NoError(t, err)
	assert.Equal(t, 7*60+59, minute)

	_, err = ParseClock("25:00")
	assert.ErrorIs(t, err, ErrInvalidClock)
	_, err = ParseClock("")
	assert.ErrorIs(t, err, ErrInvalidClock)
}
