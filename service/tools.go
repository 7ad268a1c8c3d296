package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultTimezone = "UTC"

const humanTimeLayout = "Monday, January 2, 2006 at 3:04:05 PM MST"

// Clock is the time source for CurrentTime.
type Clock = clockwork.Clock

type TimeResult struct {
	Timezone  string
	ISO       string
	Localized string
}

func (r TimeResult) String() string {
	return fmt.Sprintf("Current time in %s: %s (%s)", r.Timezone, r.Localized, r.ISO)
}

// CurrentTime renders the clock's current instant in the named IANA zone.
// An empty name means UTC.
func CurrentTime(clock Clock, timezone string) (TimeResult, error) {
	name := strings.TrimSpace(timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return TimeResult{}, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	now := clock.Now().In(loc)
	return TimeResult{
		Timezone:  name,
		ISO:       now.Format(time.RFC3339),
		Localized: now.Format(humanTimeLayout),
	}, nil
}

func Echo(message string, uppercase bool) string {
	if uppercase {
		return strings.ToUpper(message)
	}
	return message
}
