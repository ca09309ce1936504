package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/smallbiznis/adminwatch/internal/apperror"
)

var ErrInvalidClock = fmt.Errorf("%w: invalid_quiet_hours", apperror.ErrValidationFailed)

// Drop and delivery reasons recorded on a Decision.
const (
	ReasonDeliver             = "deliver"
	ReasonQuietHours          = "quiet_hours"
	ReasonCategoryDisabled    = "category_disabled"
	ReasonCountryNotMonitored = "country_not_monitored"
	ReasonNoChannels          = "no_channels"
)

// Decision is the delivery instruction for one recipient. Deliver is false
// when the event was dropped.
type Decision struct {
	Deliver       bool
	DeliverNow    bool
	DeferredUntil *time.Time
	Channels      []Channel
	Reason        string
}

// Route applies a recipient's preferences to an event at instant now.
func Route(event Event, pref Preference, now time.Time) Decision {
	if !pref.CategoryEnabled(event.Category) {
		return Decision{Reason: ReasonCategoryDisabled}
	}
	if pref.MonitoredCountries != nil && !containsCountry(pref.MonitoredCountries, event.CountryCode) {
		return Decision{Reason: ReasonCountryNotMonitored}
	}
	channels := pref.Channels()
	if len(channels) == 0 {
		return Decision{Reason: ReasonNoChannels}
	}

	if pref.QuietHoursEnabled {
		loc := LoadLocation(pref.Timezone)
		start, errStart := ParseClock(pref.QuietStart)
		end, errEnd := ParseClock(pref.QuietEnd)
		if errStart == nil && errEnd == nil {
			local := now.In(loc)
			if InQuietHours(start, end, local.Hour()*60+local.Minute()) {
				until := NextQuietEnd(now, loc, end)
				return Decision{
					Deliver:       true,
					DeferredUntil: &until,
					Channels:      channels,
					Reason:        ReasonQuietHours,
				}
			}
		}
	}

	return Decision{Deliver: true, DeliverNow: true, Channels: channels, Reason: ReasonDeliver}
}

// InQuietHours reports whether minute-of-day m lies in [start, end). The window
// wraps midnight when end < start; start == end is an empty window.
func InQuietHours(start, end, m int) bool {
	switch {
	case start == end:
		return false
	case start < end:
		return m >= start && m < end
	default:
		return m >= start || m < end
	}
}

// NextQuietEnd returns the first instant after now at which the recipient's
// local clock reads end (minute of day).
func NextQuietEnd(now time.Time, loc *time.Location, end int) time.Time {
	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), end/60, end%60, 0, 0, loc)
	if !candidate.After(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, end/60, end%60, 0, 0, loc)
	}
	return candidate.UTC()
}

// ParseClock converts "HH:MM" into a minute of day.
func ParseClock(value string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, ErrInvalidClock
	}
	return t.Hour()*60 + t.Minute(), nil
}

// LoadLocation falls back to UTC for empty or unknown zones.
func LoadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func containsCountry(codes []string, code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	for _, c := range codes {
		if strings.ToUpper(strings.TrimSpace(c)) == code {
			return true
		}
	}
	return false
}
