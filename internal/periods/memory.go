package periods

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and local development. It
// mirrors the ordering semantics of the PostgreSQL store.
type MemoryStore struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]*Period
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]*Period)}
}

var _ TxStore = (*MemoryStore)(nil)

func (s *MemoryStore) sorted(filter func(*Period) bool) []*Period {
	var out []*Period
	for _, p := range s.records {
		if filter == nil || filter(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FirstActive returns the active period with the earliest start date.
func (s *MemoryStore) FirstActive(ctx context.Context, membershipID int64) (*Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.sorted(func(p *Period) bool { return p.MembershipID == membershipID && p.IsActive })
	if len(active) == 0 {
		return nil, nil
	}
	cp := *active[0]
	return &cp, nil
}

// LastActive returns the active period with the latest start date.
func (s *MemoryStore) LastActive(ctx context.Context, membershipID int64) (*Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	active := s.sorted(func(p *Period) bool { return p.MembershipID == membershipID && p.IsActive })
	if len(active) == 0 {
		return nil, nil
	}
	cp := *active[len(active)-1]
	return &cp, nil
}

// Last returns the most recent period by start date, active or not.
func (s *MemoryStore) Last(ctx context.Context, membershipID int64) (*Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sorted(func(p *Period) bool { return p.MembershipID == membershipID })
	if len(all) == 0 {
		return nil, nil
	}
	cp := *all[len(all)-1]
	return &cp, nil
}

// FindByLink returns the most recent period backed by the given payment source.
func (s *MemoryStore) FindByLink(ctx context.Context, link PaymentLink) (*Period, error) {
	if link.IsZero() {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := s.sorted(func(p *Period) bool { return p.Link == link })
	if len(matches) == 0 {
		return nil, nil
	}
	cp := *matches[len(matches)-1]
	return &cp, nil
}

// ActiveLinked lists all active periods carrying a payment link, ordered by id.
func (s *MemoryStore) ActiveLinked(ctx context.Context) ([]Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Period
	for _, p := range s.records {
		if p.IsActive && !p.Link.IsZero() {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create stores a new period and returns its id.
func (s *MemoryStore) Create(ctx context.Context, p Period) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	p.ID = s.seq
	p.StartDate = Day(p.StartDate)
	p.EndDate = Day(p.EndDate)
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.records[p.ID] = &p
	return p.ID, nil
}

// Update applies a partial update to the period with the given id.
func (s *MemoryStore) Update(ctx context.Context, id int64, upd PeriodUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[id]
	if !ok {
		return ErrPeriodNotFound
	}
	if upd.StartDate != nil {
		p.StartDate = Day(*upd.StartDate)
	}
	if upd.EndDate != nil {
		p.EndDate = Day(*upd.EndDate)
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	if upd.Link != nil {
		p.Link = *upd.Link
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// InTx runs fn against the store and restores the pre-call state when fn
// returns an error, emulating a rolled-back transaction.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	snap := s.Snapshot()
	if err := fn(s); err != nil {
		s.Restore(snap)
		return err
	}
	return nil
}

// Snapshot copies the current store contents.
func (s *MemoryStore) Snapshot() map[int64]Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[int64]Period, len(s.records))
	for id, p := range s.records {
		snap[id] = *p
	}
	return snap
}

// Restore replaces the store contents with a previously taken snapshot.
func (s *MemoryStore) Restore(snap map[int64]Period) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[int64]*Period, len(snap))
	for id, p := range snap {
		cp := p
		s.records[id] = &cp
	}
}

// All returns every stored period ordered by start date. Test helper.
func (s *MemoryStore) All() []Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Period
	for _, p := range s.sorted(nil) {
		out = append(out, *p)
	}
	return out
}
