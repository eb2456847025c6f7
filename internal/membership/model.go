// Package membership holds the membership aggregate, its type catalog, and
// the end date calculator.
package membership

import (
	"time"

	"github.com/memberline/memberline/internal/shared"
)

// DurationUnit enumerates membership term units.
type DurationUnit uint8

const (
	DurationDay DurationUnit = iota
	DurationMonth
	DurationYear
	DurationLifetime
)

// Duration is the coverage term attached to a membership type: n days,
// months, or years, or lifetime.
type Duration struct {
	Unit     DurationUnit
	Interval int
}

// Type is a catalog entry memberships are sold under.
type Type struct {
	ID       int64
	Name     string
	Duration Duration
}

// Membership is the host-system record the period engine reconciles against.
type Membership struct {
	ID              int64
	ContactID       int64
	TypeID          int64
	JoinDate        time.Time
	EndDate         time.Time
	Status          shared.MembershipStatus
	RecurringPlanID *int64
}
