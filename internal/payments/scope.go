package payments

// Scope tracks the payment event ids handled during one processing run (one
// request or one job invocation). The host can deliver the same event more
// than once within a run; the adapter skips repeats. The scope is not
// persisted, so an event redelivered in a later run is treated as new.
type Scope struct {
	seen map[string]int
}

// NewScope starts an empty processing scope.
func NewScope() *Scope {
	return &Scope{seen: make(map[string]int)}
}

// Observe records a delivery of eventID and returns how many times it has
// now been seen within this scope.
func (s *Scope) Observe(eventID string) int {
	s.seen[eventID]++
	return s.seen[eventID]
}
