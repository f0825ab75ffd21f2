package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Recurrence errors.
var (
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// ExpanderConfig holds configuration for recurrence expansion.
type ExpanderConfig struct {
	// MaxOccurrences is the hard cap on the number of occurrences a single
	// rule may expand to. Authoring previews must never imply an unbounded
	// series. Default: 100.
	MaxOccurrences int

	// IndefiniteYears is the horizon applied to rules with an indefinite
	// duration bound, measured from the anchor date. Default: 2.
	IndefiniteYears int
}

// DefaultExpanderConfig returns the default configuration.
func DefaultExpanderConfig() ExpanderConfig {
	return ExpanderConfig{
		MaxOccurrences:  100,
		IndefiniteYears: 2,
	}
}

// Expander turns a recurrence rule into a capped, ordered list of concrete
// occurrence dates.
type Expander struct {
	config ExpanderConfig
}

// NewExpander creates a new Expander with the given configuration.
func NewExpander(config ExpanderConfig) *Expander {
	if config.MaxOccurrences <= 0 {
		config.MaxOccurrences = DefaultExpanderConfig().MaxOccurrences
	}
	if config.IndefiniteYears <= 0 {
		config.IndefiniteYears = DefaultExpanderConfig().IndefiniteYears
	}
	return &Expander{config: config}
}

// Expand walks day-by-day from the rule's anchor date to its computed end
// date inclusive and collects the dates the pattern selects, stopping once
// the occurrence cap is reached. Output is strictly ascending by
// construction. A malformed rule fails with ErrInvalidRule; an empty series
// is never returned for a rule that merely had nothing valid to select,
// because an empty series is indistinguishable from "safe to save".
func (e *Expander) Expand(rule RecurrenceRule) ([]string, error) {
	anchor, err := ParseDate(rule.AnchorDate)
	if err != nil {
		return nil, fmt.Errorf("%w: anchor date %q", ErrInvalidRule, rule.AnchorDate)
	}

	include, err := e.patternFilter(rule, anchor)
	if err != nil {
		return nil, err
	}

	if rule.Pattern == PatternNever {
		return []string{anchor.Format(DateLayout)}, nil
	}

	end, err := e.endDate(rule, anchor)
	if err != nil {
		return nil, err
	}

	occurrences := make([]string, 0, e.config.MaxOccurrences)
	for d := anchor; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !include(d) {
			continue
		}
		occurrences = append(occurrences, d.Format(DateLayout))
		if len(occurrences) >= e.config.MaxOccurrences {
			break
		}
	}

	return occurrences, nil
}

// patternFilter builds the per-day inclusion predicate for the rule.
func (e *Expander) patternFilter(rule RecurrenceRule, anchor time.Time) (func(time.Time) bool, error) {
	switch rule.Pattern {
	case PatternNever:
		return func(d time.Time) bool { return d.Equal(anchor) }, nil

	case PatternDaily:
		return func(time.Time) bool { return true }, nil

	case PatternWeekly:
		weekday := anchor.Weekday()
		return func(d time.Time) bool { return d.Weekday() == weekday }, nil

	case PatternWeeklyCustom:
		if len(rule.SelectedWeekdays) == 0 {
			return nil, fmt.Errorf("%w: weekly_custom requires at least one weekday", ErrInvalidRule)
		}
		selected := make(map[int]bool, len(rule.SelectedWeekdays))
		for _, wd := range rule.SelectedWeekdays {
			if wd < 0 || wd > 6 {
				return nil, fmt.Errorf("%w: weekday index %d out of range", ErrInvalidRule, wd)
			}
			selected[wd] = true
		}
		return func(d time.Time) bool { return selected[MondayIndex(d)] }, nil

	case PatternMonthly:
		// Months lacking the anchor's day-of-month are silently skipped
		// (day 31 never lands in February); the rule is not auto-adjusted.
		dayOfMonth := anchor.Day()
		return func(d time.Time) bool { return d.Day() == dayOfMonth }, nil

	default:
		return nil, fmt.Errorf("%w: unknown pattern %q", ErrInvalidRule, rule.Pattern)
	}
}

// endDate computes the inclusive end of the expansion window from the rule's
// duration bound.
func (e *Expander) endDate(rule RecurrenceRule, anchor time.Time) (time.Time, error) {
	switch rule.DurationBound {
	case BoundOneMonth:
		return anchor.AddDate(0, 1, 0), nil
	case BoundThreeMonths:
		return anchor.AddDate(0, 3, 0), nil
	case BoundSixMonths:
		return anchor.AddDate(0, 6, 0), nil
	case BoundOneYear:
		return anchor.AddDate(1, 0, 0), nil
	case BoundUntilDate:
		end, err := ParseDate(rule.EndDate)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: end date %q", ErrInvalidRule, rule.EndDate)
		}
		if end.Before(anchor) {
			return time.Time{}, fmt.Errorf("%w: end date precedes anchor date", ErrInvalidRule)
		}
		return end, nil
	case BoundIndefinite, "":
		return anchor.AddDate(e.config.IndefiniteYears, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown duration bound %q", ErrInvalidRule, rule.DurationBound)
	}
}
