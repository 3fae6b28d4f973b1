// Package results supplies the join engine with tally datasets read from the
// results store, cached in the two-tier cache, and invalidated by tally
// update events.
package results

import "time"

// TallyEvent is published whenever new tallies land for an election. The
// consumer side drops every cached dataset for that election so the next
// join re-reads fresh numbers.
type TallyEvent struct {
	ElectionID string    `json:"election_id"`
	District   string    `json:"district,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// KeyPrefix returns the cache-key prefix shared by every cached dataset of
// an election.
func KeyPrefix(electionID string) string {
	return "results:" + electionID
}
