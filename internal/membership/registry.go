package membership

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberline/memberline/internal/shared"
)

// Fields carries a partial membership update. Nil fields are left untouched.
type Fields struct {
	JoinDate        *time.Time
	EndDate         *time.Time
	Status          *shared.MembershipStatus
	RecurringPlanID *int64
}

// Registry persists memberships and their type catalog in PostgreSQL.
type Registry struct {
	pool *pgxpool.Pool
}

// NewRegistry constructs a Registry.
func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

var durationUnits = map[string]DurationUnit{
	"day":      DurationDay,
	"month":    DurationMonth,
	"year":     DurationYear,
	"lifetime": DurationLifetime,
}

// Get loads a membership. Missing records surface as shared.LookupError.
func (r *Registry) Get(ctx context.Context, id int64) (Membership, error) {
	var m Membership
	var planID pgtype.Int8
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, contact_id, type_id, join_date, end_date, status, recurring_plan_id
FROM memberships WHERE id=$1`, id).
		Scan(&m.ID, &m.ContactID, &m.TypeID, &m.JoinDate, &m.EndDate, &status, &planID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, shared.NewLookupError("membership", id)
		}
		return Membership{}, err
	}
	m.Status = shared.MembershipStatus(status)
	if planID.Valid {
		m.RecurringPlanID = &planID.Int64
	}
	return m, nil
}

// TypeOf loads a membership type catalog entry.
func (r *Registry) TypeOf(ctx context.Context, typeID int64) (Type, error) {
	var t Type
	var unit string
	err := r.pool.QueryRow(ctx, `SELECT id, name, duration_unit, duration_interval
FROM membership_types WHERE id=$1`, typeID).
		Scan(&t.ID, &t.Name, &unit, &t.Duration.Interval)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Type{}, shared.NewLookupError("membership type", typeID)
		}
		return Type{}, err
	}
	parsed, ok := durationUnits[unit]
	if !ok {
		return Type{}, fmt.Errorf("membership: type %d has unknown duration unit %q", typeID, unit)
	}
	t.Duration.Unit = parsed
	return t, nil
}

// Create inserts a membership record and returns its id.
func (r *Registry) Create(ctx context.Context, m Membership) (int64, error) {
	var planID pgtype.Int8
	if m.RecurringPlanID != nil {
		planID = pgtype.Int8{Int64: *m.RecurringPlanID, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO memberships
(contact_id, type_id, join_date, end_date, status, recurring_plan_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		m.ContactID, m.TypeID, m.JoinDate, m.EndDate, string(m.Status), planID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update applies a partial update to a membership record.
func (r *Registry) Update(ctx context.Context, id int64, fields Fields) error {
	set := make([]string, 0, 4)
	args := make([]any, 0, 5)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, column+"=$"+strconv.Itoa(len(args)))
	}

	if fields.JoinDate != nil {
		add("join_date", *fields.JoinDate)
	}
	if fields.EndDate != nil {
		add("end_date", *fields.EndDate)
	}
	if fields.Status != nil {
		add("status", string(*fields.Status))
	}
	if fields.RecurringPlanID != nil {
		add("recurring_plan_id", *fields.RecurringPlanID)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at=NOW()")

	args = append(args, id)
	tag, err := r.pool.Exec(ctx, "UPDATE memberships SET "+strings.Join(set, ", ")+" WHERE id=$"+strconv.Itoa(len(args)), args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewLookupError("membership", id)
	}
	return nil
}

// VerifyStatuses checks at startup that the membership_statuses table covers
// the closed status set the engine compiles against.
func (r *Registry) VerifyStatuses(ctx context.Context) error {
	rows, err := r.pool.Query(ctx, `SELECT name FROM membership_statuses`)
	if err != nil {
		return fmt.Errorf("membership: load statuses: %w", err)
	}
	defer rows.Close()

	known := make(map[shared.MembershipStatus]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("membership: scan status: %w", err)
		}
		known[shared.MembershipStatus(name)] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, status := range shared.AllMembershipStatuses {
		if !known[status] {
			return fmt.Errorf("membership: status %q missing from membership_statuses", status)
		}
	}
	return nil
}
