// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurrence cadences. Each
// recurrence type has its own strategy that computes the next due date from an
// anchor date. All arithmetic is done in UTC with time.AddDate, so the result
// does not depend on the host time zone or on the wall clock. Month overflow
// normalises the way AddDate does: Jan 31 + 1 month is Mar 2 (or Mar 3).
package services

import (
	"fmt"
	"time"

	"networth/internal/core"
)

// CadenceStrategy computes the next occurrence after anchor for a rule.
type CadenceStrategy interface {
	Next(anchor time.Time, rule core.RecurrenceRule) time.Time
}

// DailyCadence advances by one day.
type DailyCadence struct{}

func (DailyCadence) Next(anchor time.Time, _ core.RecurrenceRule) time.Time {
	return anchor.UTC().AddDate(0, 0, 1)
}

// WeeklyCadence advances by seven days.
type WeeklyCadence struct{}

func (WeeklyCadence) Next(anchor time.Time, _ core.RecurrenceRule) time.Time {
	return anchor.UTC().AddDate(0, 0, 7)
}

// MonthlyCadence advances by one calendar month, keeping the day of month.
type MonthlyCadence struct{}

func (MonthlyCadence) Next(anchor time.Time, _ core.RecurrenceRule) time.Time {
	return anchor.UTC().AddDate(0, 1, 0)
}

// CustomCadence advances by interval x unit. An unknown unit or a
// non-positive interval leaves the anchor unchanged.
type CustomCadence struct{}

func (CustomCadence) Next(anchor time.Time, rule core.RecurrenceRule) time.Time {
	anchor = anchor.UTC()
	n := rule.Interval
	if n < 1 {
		return anchor
	}
	switch rule.Unit {
	case core.Days:
		return anchor.AddDate(0, 0, n)
	case core.Weeks:
		return anchor.AddDate(0, 0, 7*n)
	case core.Months:
		return anchor.AddDate(0, n, 0)
	case core.Years:
		return anchor.AddDate(n, 0, 0)
	default:
		return anchor
	}
}

// cadenceStrategies maps recurrence types to their strategies.
var cadenceStrategies = map[core.RecurrenceType]CadenceStrategy{
	core.Daily:   DailyCadence{},
	core.Weekly:  WeeklyCadence{},
	core.Monthly: MonthlyCadence{},
	core.Custom:  CustomCadence{},
}

// GetCadenceStrategy returns the strategy for a recurrence type.
func GetCadenceStrategy(recurrence core.RecurrenceType) (CadenceStrategy, error) {
	s, ok := cadenceStrategies[recurrence]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence type: %q", recurrence)
	}
	return s, nil
}

// RegisterCadenceStrategy registers a strategy for an additional recurrence type.
// Not safe for use concurrently with Cadence; register during init.
func RegisterCadenceStrategy(recurrence core.RecurrenceType, s CadenceStrategy) {
	cadenceStrategies[recurrence] = s
}

// Cadence returns the next due date after anchor. A rule with no or an
// unknown type returns the anchor unchanged.
func Cadence(anchor time.Time, rule core.RecurrenceRule) time.Time {
	s, err := GetCadenceStrategy(rule.Type)
	if err != nil {
		return anchor.UTC()
	}
	return s.Next(anchor, rule)
}
