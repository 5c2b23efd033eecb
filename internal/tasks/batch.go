package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
)

// MaxBatchSize is the remote API's hard limit on items per mutation call.
const MaxBatchSize = 100

// Chunk splits items into consecutive sub-slices of at most size,
// preserving relative order. Concatenating the chunks reproduces the
// input exactly.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// ChunkError records the failure of one chunk within a batched mutation.
type ChunkError struct {
	Chunk int    `json:"chunk"`
	Error string `json:"error"`
}

// MutationReport is the aggregate outcome of a batched mutation. Chunk
// failures are reported individually instead of collapsing the whole
// operation into a single fatal error.
type MutationReport struct {
	Attempted int          `json:"attempted"`
	Succeeded int          `json:"succeeded"`
	Failed    []ChunkError `json:"failed,omitempty"`
}

// AllOK reports whether every attempted chunk succeeded.
func (r MutationReport) AllOK() bool {
	return len(r.Failed) == 0
}

// Untouched reports whether no chunk was applied at all.
func (r MutationReport) Untouched() bool {
	return r.Succeeded == 0
}

// FailedSet returns the failed chunk indices as a set.
func (r MutationReport) FailedSet() map[int]bool {
	set := make(map[int]bool, len(r.Failed))
	for _, f := range r.Failed {
		set[f.Chunk] = true
	}
	return set
}

// ReplaceState classifies the outcome of a non-atomic replace-all.
type ReplaceState string

const (
	ReplaceApplied   ReplaceState = "applied"   // fully applied
	ReplacePartial   ReplaceState = "partial"   // collection left empty or partially rewritten
	ReplaceUnchanged ReplaceState = "unchanged" // failed before any change
)

// ReplaceResult reports a replace-all operation phase by phase.
type ReplaceResult struct {
	State   ReplaceState   `json:"state"`
	Removed MutationReport `json:"removed"`
	Added   MutationReport `json:"added"`
}

// Mutator applies size-limited batched mutations against the remote
// collection API with per-chunk failure isolation.
type Mutator struct {
	svc    services.Service
	logger *log.Logger
}

// NewMutator creates a Mutator talking to svc.
func NewMutator(svc services.Service, logger *log.Logger) *Mutator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Mutator{svc: svc, logger: logger}
}

// Remove deletes the given URIs from the playlist in chunks of at most
// [MaxBatchSize].
//
// Continue-on-error: a failed chunk does not block later chunks. Each
// chunk is an independent remote transaction, so the report carries the
// failed indices for manual reconciliation.
func (m *Mutator) Remove(ctx context.Context, accessToken, playlistID string, uris []string) MutationReport {
	report := MutationReport{}

	for i, chunk := range Chunk(uris, MaxBatchSize) {
		report.Attempted++
		if err := m.svc.RemoveTracks(ctx, accessToken, playlistID, chunk); err != nil {
			m.logger.Error("remove chunk failed", "playlist", playlistID, "chunk", i, "size", len(chunk), "err", err)
			report.Failed = append(report.Failed, ChunkError{Chunk: i, Error: err.Error()})
			continue
		}
		report.Succeeded++
	}

	return report
}

// Add appends the given URIs to the playlist in chunks of at most
// [MaxBatchSize], in order: chunk N's items land after chunk N-1's.
//
// Stops at the first failed chunk. Skipping a failed chunk and appending
// later ones would silently reorder the collection, so the remainder is
// reported as failed instead of attempted out of order.
func (m *Mutator) Add(ctx context.Context, accessToken, playlistID string, uris []string) MutationReport {
	report := MutationReport{}
	chunks := Chunk(uris, MaxBatchSize)

	for i, chunk := range chunks {
		report.Attempted++
		if err := m.svc.AddTracks(ctx, accessToken, playlistID, chunk); err != nil {
			m.logger.Error("add chunk failed", "playlist", playlistID, "chunk", i, "size", len(chunk), "err", err)
			report.Failed = append(report.Failed, ChunkError{Chunk: i, Error: err.Error()})
			for j := i + 1; j < len(chunks); j++ {
				report.Attempted++
				report.Failed = append(report.Failed, ChunkError{Chunk: j, Error: "skipped: previous chunk failed"})
			}
			break
		}
		report.Succeeded++
	}

	return report
}

// ReplaceAll rewrites the playlist to hold exactly next, in that order.
//
// The remote API has no atomic replace, so this removes every current
// URI before inserting the new order. Between the phases the collection
// is observably empty, and a crash mid-operation can leave it empty or
// partially rewritten; callers accept that window as part of the
// contract. currentURIs must cover every URI present in the playlist.
func (m *Mutator) ReplaceAll(ctx context.Context, accessToken, playlistID string, currentURIs, next []string) ReplaceResult {
	result := ReplaceResult{State: ReplaceUnchanged}

	result.Removed = m.Remove(ctx, accessToken, playlistID, uniqueStrings(currentURIs))
	if !result.Removed.AllOK() {
		if !result.Removed.Untouched() {
			result.State = ReplacePartial
		}
		// Inserting on top of leftover tracks would duplicate them;
		// stop after the removal phase.
		return result
	}
	result.State = ReplacePartial

	result.Added = m.Add(ctx, accessToken, playlistID, next)
	if result.Added.AllOK() {
		result.State = ReplaceApplied
	}

	return result
}

// uniqueStrings returns values with later duplicates dropped, preserving
// first-seen order.
func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
