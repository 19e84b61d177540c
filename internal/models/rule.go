package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	RuleKindRecurring = "recurring"
	RuleKindException = "exception"
)

// LocalClock is a wall-clock offset from local midnight in minutes.
// Values above 24h are legal in rule end positions (a shift running past
// midnight); the resolver splits those across calendar dates.
type LocalClock int

// ParseLocalClock parses "HH:MM". "24:00" is accepted as end-of-day.
func ParseLocalClock(s string) (LocalClock, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q: expected HH:MM", s)
	}
	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 {
		return 0, fmt.Errorf("clock %q: bad hour", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock %q: bad minute", s)
	}
	return LocalClock(hh*60 + mm), nil
}

func (c LocalClock) Minutes() int { return int(c) }

func (c LocalClock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c *LocalClock) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := ParseLocalClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (c LocalClock) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// ClockRange is a local wall-clock window within a day.
type ClockRange struct {
	Start LocalClock `yaml:"start" json:"start"`
	End   LocalClock `yaml:"end" json:"end"`
}

// AvailabilityRule is a tagged union: a recurring weekly rule or a date
// exception. A date exception replaces all recurring rules on its date;
// an exception with no intervals closes the date entirely.
type AvailabilityRule struct {
	ID         int64        `yaml:"id" json:"id"`
	ProviderID string       `yaml:"provider_id" json:"provider_id"`
	Kind       string       `yaml:"kind" json:"kind"`
	Timezone   string       `yaml:"timezone" json:"timezone"`
	Weekday    time.Weekday `yaml:"weekday" json:"weekday"`     // recurring only
	Start      LocalClock   `yaml:"start" json:"start"`         // recurring only
	End        LocalClock   `yaml:"end" json:"end"`             // recurring only
	Date       string       `yaml:"date" json:"date"`           // exception only, YYYY-MM-DD
	Intervals  []ClockRange `yaml:"intervals" json:"intervals"` // exception only
}

func (r AvailabilityRule) IsRecurring() bool { return r.Kind == RuleKindRecurring }
func (r AvailabilityRule) IsException() bool { return r.Kind == RuleKindException }
