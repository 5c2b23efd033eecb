package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
)

// NonAtomicReplaceWarning is surfaced with every replace-all result so
// callers cannot miss the contract: the collection is observably empty
// between the delete and insert phases.
const NonAtomicReplaceWarning = "replace is not atomic: the playlist is briefly empty and a crash mid-operation can leave it empty or partially reordered"

// PlaylistEngine composes the pagination aggregator, the duplicate
// detector and the batch mutator into the user-facing operations.
//
// Each operation is strictly sequential: aggregation completes before
// detection, detection before mutation.
type PlaylistEngine struct {
	svc     services.Service
	mutator *Mutator
	logger  *log.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewPlaylistEngine creates an engine over svc.
func NewPlaylistEngine(svc services.Service, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		svc:     svc,
		mutator: NewMutator(svc, logger),
		logger:  logger,
		shuffle: rand.Shuffle,
	}
}

// CollectPlaylist materializes the full ordered track list of a playlist,
// assigning each track its position at fetch time.
func (e *PlaylistEngine) CollectPlaylist(ctx context.Context, cred models.Credential, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	items, err := CollectAll(ctx, e.svc.PlaylistTracksURL(playlistID), func(ctx context.Context, pageURL string) ([]models.Track, string, error) {
		return e.svc.TracksPage(ctx, cred.AccessToken, pageURL)
	})
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, err)
	}

	for i := range items {
		items[i].Position = i
	}
	return items, nil
}

// DedupResult reports a remove-duplicates operation.
type DedupResult struct {
	PlaylistID   string          `json:"playlist_id"`
	Key          KeyPolicy       `json:"key"`
	Total        int             `json:"total"`
	RemovedCount int             `json:"removed_count"`
	Duplicates   []models.Track  `json:"duplicates"`
	Removal      *MutationReport `json:"removal,omitempty"`
	Insertion    *MutationReport `json:"insertion,omitempty"`
}

// FindDuplicates aggregates the playlist and partitions it under the
// policy without mutating anything.
func (e *PlaylistEngine) FindDuplicates(ctx context.Context, cred models.Credential, playlistID string, policy KeyPolicy) (*DedupResult, error) {
	items, err := e.CollectPlaylist(ctx, cred, playlistID)
	if err != nil {
		return nil, err
	}

	part := PartitionTracks(items, policy)
	return &DedupResult{
		PlaylistID:   playlistID,
		Key:          policy,
		Total:        len(items),
		RemovedCount: len(part.Duplicates),
		Duplicates:   part.Duplicates,
	}, nil
}

// RemoveDuplicates aggregates the playlist, partitions it under the
// policy, and rewrites the remote playlist to keep only first
// occurrences.
//
// The remote delete primitive removes every occurrence of a URI, so the
// removal set is the distinct URIs of the duplicate entries, and any of
// those URIs also present among retained entries is re-appended once
// afterwards. Re-insertion only covers URIs whose delete chunk
// succeeded; a failed chunk leaves its tracks in place.
func (e *PlaylistEngine) RemoveDuplicates(ctx context.Context, cred models.Credential, playlistID string, policy KeyPolicy) (*DedupResult, error) {
	items, err := e.CollectPlaylist(ctx, cred, playlistID)
	if err != nil {
		return nil, err
	}

	part := PartitionTracks(items, policy)
	result := &DedupResult{
		PlaylistID:   playlistID,
		Key:          policy,
		Total:        len(items),
		RemovedCount: len(part.Duplicates),
		Duplicates:   part.Duplicates,
	}
	if len(part.Duplicates) == 0 {
		return result, nil
	}

	removal := make([]string, 0, len(part.Duplicates))
	for _, d := range part.Duplicates {
		removal = append(removal, d.URI)
	}
	removal = uniqueStrings(removal)

	retained := make(map[string]bool, len(part.Retained))
	for _, r := range part.Retained {
		retained[r.URI] = true
	}

	e.logger.Info("removing duplicates",
		"user", cred.UserID, "playlist", playlistID, "key", policy,
		"total", len(items), "duplicates", len(part.Duplicates))

	removalReport := e.mutator.Remove(ctx, cred.AccessToken, playlistID, removal)
	result.Removal = &removalReport

	// URIs shared between a duplicate and a retained entry lost their
	// retained occurrence too; append them back once, at the end.
	failed := removalReport.FailedSet()
	var reAdd []string
	for i, chunk := range Chunk(removal, MaxBatchSize) {
		if failed[i] {
			continue
		}
		for _, uri := range chunk {
			if retained[uri] {
				reAdd = append(reAdd, uri)
			}
		}
	}

	if len(reAdd) > 0 {
		insertion := e.mutator.Add(ctx, cred.AccessToken, playlistID, reAdd)
		result.Insertion = &insertion
	}

	return result, nil
}

// ShuffleResult reports a shuffle operation.
type ShuffleResult struct {
	PlaylistID string        `json:"playlist_id"`
	Total      int           `json:"total"`
	Replace    ReplaceResult `json:"replace"`
	Warning    string        `json:"warning"`
}

// Shuffle rewrites the playlist in a random order via a delete-before-
// insert replace. The result always carries the non-atomicity warning.
func (e *PlaylistEngine) Shuffle(ctx context.Context, cred models.Credential, playlistID string) (*ShuffleResult, error) {
	items, err := e.CollectPlaylist(ctx, cred, playlistID)
	if err != nil {
		return nil, err
	}

	current := make([]string, 0, len(items))
	for _, item := range items {
		current = append(current, item.URI)
	}

	next := make([]string, len(current))
	copy(next, current)
	e.shuffle(len(next), func(i, j int) {
		next[i], next[j] = next[j], next[i]
	})

	e.logger.Info("shuffling playlist", "user", cred.UserID, "playlist", playlistID, "tracks", len(items))

	return &ShuffleResult{
		PlaylistID: playlistID,
		Total:      len(items),
		Replace:    e.mutator.ReplaceAll(ctx, cred.AccessToken, playlistID, current, next),
		Warning:    NonAtomicReplaceWarning,
	}, nil
}

// CopyResult reports a playlist copy operation.
type CopyResult struct {
	SourceID  string         `json:"source_id"`
	CopyID    string         `json:"copy_id"`
	Total     int            `json:"total"`
	Insertion MutationReport `json:"insertion"`
}

// Copy creates a new private playlist owned by the credential's user and
// appends every track of the source in order. Useful as a backup before
// a destructive rewrite.
func (e *PlaylistEngine) Copy(ctx context.Context, cred models.Credential, playlistID, name string) (*CopyResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	items, err := e.CollectPlaylist(ctx, cred, playlistID)
	if err != nil {
		return nil, err
	}

	copyID, err := e.svc.CreatePlaylist(ctx, cred.AccessToken, cred.UserID, name, fmt.Sprintf("Copy of %s", playlistID))
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.URI)
	}

	return &CopyResult{
		SourceID:  playlistID,
		CopyID:    copyID,
		Total:     len(items),
		Insertion: e.mutator.Add(ctx, cred.AccessToken, copyID, uris),
	}, nil
}

// TopTracks returns the user's top tracks, most played first, capped at
// limit when limit is positive.
func (e *PlaylistEngine) TopTracks(ctx context.Context, cred models.Credential, limit int) ([]models.Track, error) {
	items, err := CollectAll(ctx, e.svc.TopTracksURL(limit), func(ctx context.Context, pageURL string) ([]models.Track, string, error) {
		return e.svc.TracksPage(ctx, cred.AccessToken, pageURL)
	})
	if err != nil {
		return nil, err
	}

	for i := range items {
		items[i].Position = i
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GenreCount is one entry of a genre tally.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Genres tallies genre labels across the user's top artists, most
// frequent first with alphabetical tie-break.
func (e *PlaylistEngine) Genres(ctx context.Context, cred models.Credential) ([]GenreCount, error) {
	artists, err := CollectAll(ctx, e.svc.TopArtistsURL(50), func(ctx context.Context, pageURL string) ([]services.SpotifyArtist, string, error) {
		return e.svc.ArtistsPage(ctx, cred.AccessToken, pageURL)
	})
	if err != nil {
		return nil, err
	}

	tally := map[string]int{}
	for _, artist := range artists {
		for _, genre := range artist.Genres {
			tally[genre]++
		}
	}

	counts := make([]GenreCount, 0, len(tally))
	for genre, count := range tally {
		counts = append(counts, GenreCount{Genre: genre, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Genre < counts[j].Genre
	})

	return counts, nil
}

// CompareResult reports the top-track overlap of two users.
type CompareResult struct {
	UserID      string         `json:"user_id"`
	OtherID     string         `json:"other_id"`
	Shared      []models.Track `json:"shared"`
	SharedCount int            `json:"shared_count"`
	OnlyUser    int            `json:"only_user"`
	OnlyOther   int            `json:"only_other"`
}

// Compare intersects the top tracks of two users under the loose
// identity key. Shared tracks are listed in the first user's order.
func (e *PlaylistEngine) Compare(ctx context.Context, cred, other models.Credential, limit int) (*CompareResult, error) {
	mine, err := e.TopTracks(ctx, cred, limit)
	if err != nil {
		return nil, err
	}
	theirs, err := e.TopTracks(ctx, other, limit)
	if err != nil {
		return nil, err
	}

	theirKeys := make(map[string]bool, len(theirs))
	for _, t := range theirs {
		theirKeys[KeyLoose.Key(t)] = true
	}

	result := &CompareResult{
		UserID:  cred.UserID,
		OtherID: other.UserID,
		Shared:  []models.Track{},
	}

	myKeys := make(map[string]bool, len(mine))
	for _, t := range mine {
		key := KeyLoose.Key(t)
		myKeys[key] = true
		if theirKeys[key] {
			result.Shared = append(result.Shared, t)
		} else {
			result.OnlyUser++
		}
	}
	for key := range theirKeys {
		if !myKeys[key] {
			result.OnlyOther++
		}
	}
	result.SharedCount = len(result.Shared)

	return result, nil
}
