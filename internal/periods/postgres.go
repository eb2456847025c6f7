package periods

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memberline/memberline/internal/platform/db"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore persists periods in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPGStore constructs a PGStore over a connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, q: pool}
}

var _ TxStore = (*PGStore)(nil)

const periodColumns = `id, membership_id, start_date, end_date, is_active, payment_entity, payment_entity_id, created_at, updated_at`

func scanPeriod(row pgx.Row) (*Period, error) {
	var p Period
	var entity pgtype.Text
	var entityID pgtype.Int8
	err := row.Scan(&p.ID, &p.MembershipID, &p.StartDate, &p.EndDate, &p.IsActive, &entity, &entityID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if entity.Valid && entityID.Valid {
		p.Link = PaymentLink{Kind: LinkKind(entity.String), ID: entityID.Int64}
	}
	return &p, nil
}

// FirstActive returns the active period with the earliest start date.
func (s *PGStore) FirstActive(ctx context.Context, membershipID int64) (*Period, error) {
	return scanPeriod(s.q.QueryRow(ctx, `SELECT `+periodColumns+`
FROM membership_periods WHERE membership_id=$1 AND is_active
ORDER BY start_date ASC, id ASC LIMIT 1`, membershipID))
}

// LastActive returns the active period with the latest start date.
func (s *PGStore) LastActive(ctx context.Context, membershipID int64) (*Period, error) {
	return scanPeriod(s.q.QueryRow(ctx, `SELECT `+periodColumns+`
FROM membership_periods WHERE membership_id=$1 AND is_active
ORDER BY start_date DESC, id DESC LIMIT 1`, membershipID))
}

// Last returns the most recent period by start date, active or not.
func (s *PGStore) Last(ctx context.Context, membershipID int64) (*Period, error) {
	return scanPeriod(s.q.QueryRow(ctx, `SELECT `+periodColumns+`
FROM membership_periods WHERE membership_id=$1
ORDER BY start_date DESC, id DESC LIMIT 1`, membershipID))
}

// FindByLink returns the most recent period backed by the given payment source.
func (s *PGStore) FindByLink(ctx context.Context, link PaymentLink) (*Period, error) {
	if link.IsZero() {
		return nil, nil
	}
	return scanPeriod(s.q.QueryRow(ctx, `SELECT `+periodColumns+`
FROM membership_periods WHERE payment_entity=$1 AND payment_entity_id=$2
ORDER BY start_date DESC, id DESC LIMIT 1`, string(link.Kind), link.ID))
}

// ActiveLinked lists all active periods carrying a payment link.
func (s *PGStore) ActiveLinked(ctx context.Context) ([]Period, error) {
	rows, err := s.q.Query(ctx, `SELECT `+periodColumns+`
FROM membership_periods WHERE is_active AND payment_entity IS NOT NULL
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a new period and returns its id.
func (s *PGStore) Create(ctx context.Context, p Period) (int64, error) {
	var entity pgtype.Text
	var entityID pgtype.Int8
	if !p.Link.IsZero() {
		entity = pgtype.Text{String: string(p.Link.Kind), Valid: true}
		entityID = pgtype.Int8{Int64: p.Link.ID, Valid: true}
	}

	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO membership_periods
(membership_id, start_date, end_date, is_active, payment_entity, payment_entity_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING id`,
		p.MembershipID, Day(p.StartDate), Day(p.EndDate), p.IsActive, entity, entityID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("periods: duplicate period for membership %d: %w", p.MembershipID, err)
		}
		return 0, err
	}
	return id, nil
}

// Update applies a partial update to the period with the given id.
func (s *PGStore) Update(ctx context.Context, id int64, upd PeriodUpdate) error {
	set := make([]string, 0, 5)
	args := make([]any, 0, 6)

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, column+"=$"+strconv.Itoa(len(args)))
	}

	if upd.StartDate != nil {
		add("start_date", Day(*upd.StartDate))
	}
	if upd.EndDate != nil {
		add("end_date", Day(*upd.EndDate))
	}
	if upd.IsActive != nil {
		add("is_active", *upd.IsActive)
	}
	if upd.Link != nil {
		if upd.Link.IsZero() {
			add("payment_entity", nil)
			add("payment_entity_id", nil)
		} else {
			add("payment_entity", string(upd.Link.Kind))
			add("payment_entity_id", upd.Link.ID)
		}
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at=NOW()")

	args = append(args, id)
	query := "UPDATE membership_periods SET " + strings.Join(set, ", ") + " WHERE id=$" + strconv.Itoa(len(args))

	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPeriodNotFound
	}
	return nil
}

// InTx runs fn with a store bound to a single transaction.
func (s *PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PGStore{pool: s.pool, q: tx})
	})
}
