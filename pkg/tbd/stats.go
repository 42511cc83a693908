package tbd

// Stats accumulates counts across a batch extraction run: how many images
// or files were processed, how many failed, and why. Threaded explicitly by
// the caller rather than held as package state, per the core's "no global
// state" rule — the core itself never sees this type.
type Stats struct {
	Parsed  int
	Written int
	Failed  int

	FailuresByReason map[string]int
}

// NewStats returns a zeroed Stats ready for accumulation.
func NewStats() *Stats {
	return &Stats{FailuresByReason: make(map[string]int)}
}

// RecordFailure increments Failed and tallies reason for a later summary.
func (s *Stats) RecordFailure(reason string) {
	s.Failed++
	s.FailuresByReason[reason]++
}

// RecordWritten increments Parsed and Written together, the common case of
// a descriptor that was both built and written to disk.
func (s *Stats) RecordWritten() {
	s.Parsed++
	s.Written++
}
