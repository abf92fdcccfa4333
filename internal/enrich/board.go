package enrich

import (
	"sort"
	"sync"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// Status of one candidate's enrichment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)

// Entry is the enrichment state of one candidate.
type Entry struct {
	Rank   int                      `json:"rank"`
	Status Status                   `json:"status"`
	Places []model.RecommendedPlace `json:"places"`
}

// Board holds per-candidate enrichment for the current generation only.
type Board struct {
	mu      sync.Mutex
	gen     uint64
	entries map[int]*Entry
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{entries: make(map[int]*Entry)}
}

// Reset discards all entries and starts gen with every candidate pending.
func (b *Board) Reset(gen uint64, candidates []model.CandidatePoint) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen = gen
	b.entries = make(map[int]*Entry, len(candidates))
	for _, c := range candidates {
		b.entries[c.Rank] = &Entry{Rank: c.Rank, Status: StatusPending, Places: []model.RecommendedPlace{}}
	}
}

// Apply stores r if it belongs to the current generation and a known
// candidate. It reports whether r was applied.
func (b *Board) Apply(r Result) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if r.Generation != b.gen {
		return false
	}
	e, ok := b.entries[r.Rank]
	if !ok {
		return false
	}
	e.Places = clonePlaces(r.Places)
	e.Status = StatusReady
	if r.Unavailable() {
		e.Status = StatusUnavailable
	}
	return true
}

// Generation returns the generation the board currently tracks.
func (b *Board) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen
}

// Pending counts candidates still waiting for a result.
func (b *Board) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.entries {
		if e.Status == StatusPending {
			n++
		}
	}
	return n
}

// Entries returns a copy of every entry ordered by rank.
func (b *Board) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, Entry{Rank: e.Rank, Status: e.Status, Places: clonePlaces(e.Places)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
