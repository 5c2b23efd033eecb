package tasks

import (
	"context"
	"fmt"
	"testing"

	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/services"
	spotiktest "github.com/spotik/spotik/internal/testing"
)

var cred = models.Credential{UserID: "user-1", AccessToken: "tok"}

// playlistOf serves the given tracks as the playlist listing, paged.
func playlistOf(svc *spotiktest.StubService, tracks []models.Track, pageSize int) {
	paged := spotiktest.PagedTracks(tracks, pageSize)
	svc.TracksPageFn = paged
}

func TestRemoveDuplicates(t *testing.T) {
	ctx := context.Background()

	t.Run("Large Playlist Single Delete Call", func(t *testing.T) {
		// 250 tracks, 30 of which repeat an earlier (title, artist)
		// under a different URI.
		var tracks []models.Track
		for i := 0; i < 220; i++ {
			tracks = append(tracks, models.Track{
				URI:    fmt.Sprintf("spotify:track:orig%03d", i),
				Title:  fmt.Sprintf("Song %03d", i),
				Artist: "Artist",
			})
		}
		for i := 0; i < 30; i++ {
			tracks = append(tracks, models.Track{
				URI:    fmt.Sprintf("spotify:track:dup%03d", i),
				Title:  fmt.Sprintf("Song %03d", i),
				Artist: "Artist",
			})
		}

		svc := &spotiktest.StubService{}
		playlistOf(svc, tracks, 100)

		result, err := NewPlaylistEngine(svc, nil).RemoveDuplicates(ctx, cred, "pl", KeyLoose)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Total != 250 {
			t.Errorf("expected 250 total, got %d", result.Total)
		}
		if result.RemovedCount != 30 {
			t.Errorf("expected 30 removed, got %d", result.RemovedCount)
		}
		if len(svc.RemoveCalls) != 1 {
			t.Errorf("expected exactly 1 delete call, got %d", len(svc.RemoveCalls))
		}
		if len(svc.AddCalls) != 0 {
			t.Errorf("expected no re-insertion for distinct URIs, got %d add calls", len(svc.AddCalls))
		}
		if result.Removal == nil || !result.Removal.AllOK() {
			t.Errorf("expected clean removal report, got %+v", result.Removal)
		}
	})

	t.Run("Shared URI Re Added Once", func(t *testing.T) {
		// The duplicate shares the retained entry's URI, so the remote
		// delete wipes both occurrences and one must come back.
		tracks := []models.Track{
			track("uri:a", "A", "X"),
			track("uri:b", "B", "Y"),
			track("uri:a", "A", "X"),
		}

		svc := &spotiktest.StubService{}
		playlistOf(svc, tracks, 100)

		result, err := NewPlaylistEngine(svc, nil).RemoveDuplicates(ctx, cred, "pl", KeyLoose)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.RemovedCount != 1 {
			t.Errorf("expected 1 duplicate, got %d", result.RemovedCount)
		}
		if len(svc.RemoveCalls) != 1 || len(svc.RemoveCalls[0]) != 1 || svc.RemoveCalls[0][0] != "uri:a" {
			t.Fatalf("expected single delete of uri:a, got %v", svc.RemoveCalls)
		}
		if len(svc.AddCalls) != 1 || len(svc.AddCalls[0]) != 1 || svc.AddCalls[0][0] != "uri:a" {
			t.Fatalf("expected uri:a re-added once, got %v", svc.AddCalls)
		}
		if result.Insertion == nil || result.Insertion.Succeeded != 1 {
			t.Errorf("expected insertion report, got %+v", result.Insertion)
		}
	})

	t.Run("No Duplicates No Mutation", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		playlistOf(svc, []models.Track{track("uri:a", "A", "X"), track("uri:b", "B", "Y")}, 100)

		result, err := NewPlaylistEngine(svc, nil).RemoveDuplicates(ctx, cred, "pl", KeyLoose)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.RemovedCount != 0 || result.Removal != nil {
			t.Errorf("expected untouched result, got %+v", result)
		}
		if len(svc.RemoveCalls) != 0 {
			t.Error("expected no delete calls")
		}
	})

	t.Run("Failed Delete Chunk Skips Re Add", func(t *testing.T) {
		tracks := []models.Track{
			track("uri:a", "A", "X"),
			track("uri:a", "A", "X"),
		}

		svc := &spotiktest.StubService{
			RemoveTracksFn: func(ctx context.Context, token, playlist string, chunk []string) error {
				return fmt.Errorf("remote says no")
			},
		}
		playlistOf(svc, tracks, 100)

		result, err := NewPlaylistEngine(svc, nil).RemoveDuplicates(ctx, cred, "pl", KeyLoose)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Removal.AllOK() {
			t.Error("expected removal report to carry the failure")
		}
		if len(svc.AddCalls) != 0 {
			t.Error("expected no re-add after failed delete chunk")
		}
	})

	t.Run("Missing Playlist ID", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		if _, err := NewPlaylistEngine(svc, nil).RemoveDuplicates(ctx, cred, "", KeyLoose); err == nil {
			t.Error("expected error for missing playlist id")
		}
	})
}

func TestFindDuplicates(t *testing.T) {
	t.Run("Reports Without Mutating", func(t *testing.T) {
		tracks := []models.Track{
			track("uri:a", "A", "X"),
			track("uri:b", "A", "X"),
		}

		svc := &spotiktest.StubService{}
		playlistOf(svc, tracks, 100)

		result, err := NewPlaylistEngine(svc, nil).FindDuplicates(context.Background(), cred, "pl", KeyStrict)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.RemovedCount != 1 {
			t.Errorf("expected 1 duplicate under strict key, got %d", result.RemovedCount)
		}
		if len(svc.RemoveCalls) != 0 || len(svc.AddCalls) != 0 {
			t.Error("expected read-only operation")
		}
	})
}

func TestShuffle(t *testing.T) {
	t.Run("Replaces Full Playlist", func(t *testing.T) {
		var tracks []models.Track
		for i := 0; i < 150; i++ {
			tracks = append(tracks, track(fmt.Sprintf("uri:%03d", i), fmt.Sprintf("S%03d", i), "Artist"))
		}

		svc := &spotiktest.StubService{}
		playlistOf(svc, tracks, 100)

		engine := NewPlaylistEngine(svc, nil)
		engine.shuffle = func(n int, swap func(i, j int)) {
			// reverse deterministically
			for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
				swap(i, j)
			}
		}

		result, err := engine.Shuffle(context.Background(), cred, "pl")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.Replace.State != ReplaceApplied {
			t.Errorf("expected applied, got %s", result.Replace.State)
		}
		if result.Warning == "" {
			t.Error("expected non-atomicity warning in result")
		}
		if len(svc.RemoveCalls) != 2 || len(svc.AddCalls) != 2 {
			t.Errorf("expected 2 delete and 2 insert chunks, got %d/%d", len(svc.RemoveCalls), len(svc.AddCalls))
		}

		var flat []string
		for _, call := range svc.AddCalls {
			flat = append(flat, call...)
		}
		if flat[0] != "uri:149" || flat[len(flat)-1] != "uri:000" {
			t.Errorf("expected reversed order, got first=%s last=%s", flat[0], flat[len(flat)-1])
		}
	})
}

func TestCopy(t *testing.T) {
	t.Run("Creates And Fills Copy", func(t *testing.T) {
		tracks := []models.Track{
			track("uri:a", "A", "X"),
			track("uri:b", "B", "Y"),
		}

		created := ""
		svc := &spotiktest.StubService{
			CreatePlaylistFn: func(ctx context.Context, token, userID, name, description string) (string, error) {
				if userID != "user-1" {
					t.Errorf("expected owner user-1, got %s", userID)
				}
				created = name
				return "new-pl", nil
			},
		}
		playlistOf(svc, tracks, 100)

		result, err := NewPlaylistEngine(svc, nil).Copy(context.Background(), cred, "pl", "Backup")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if created != "Backup" || result.CopyID != "new-pl" {
			t.Errorf("unexpected copy target: %+v", result)
		}
		if result.Insertion.Succeeded != 1 || len(svc.AddCalls) != 1 {
			t.Errorf("expected one insert chunk, got %+v", result.Insertion)
		}
	})

	t.Run("Missing Name", func(t *testing.T) {
		svc := &spotiktest.StubService{}
		if _, err := NewPlaylistEngine(svc, nil).Copy(context.Background(), cred, "pl", ""); err == nil {
			t.Error("expected error for missing name")
		}
	})
}

func TestTopTracks(t *testing.T) {
	t.Run("Caps At Limit", func(t *testing.T) {
		var tracks []models.Track
		for i := 0; i < 75; i++ {
			tracks = append(tracks, track(fmt.Sprintf("uri:%02d", i), fmt.Sprintf("S%02d", i), "Artist"))
		}

		svc := &spotiktest.StubService{}
		playlistOf(svc, tracks, 50)

		items, err := NewPlaylistEngine(svc, nil).TopTracks(context.Background(), cred, 60)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(items) != 60 {
			t.Errorf("expected 60 tracks, got %d", len(items))
		}
		if items[0].Position != 0 || items[59].Position != 59 {
			t.Errorf("expected positions assigned in order, got %d/%d", items[0].Position, items[59].Position)
		}
	})
}

func TestGenres(t *testing.T) {
	t.Run("Tallies Sorted By Count", func(t *testing.T) {
		svc := &spotiktest.StubService{
			ArtistsPageFn: func(ctx context.Context, token, pageURL string) ([]services.SpotifyArtist, string, error) {
				return []services.SpotifyArtist{
					{Name: "One", Genres: []string{"rock", "indie"}},
					{Name: "Two", Genres: []string{"rock"}},
					{Name: "Three", Genres: []string{"ambient"}},
				}, "", nil
			},
		}

		counts, err := NewPlaylistEngine(svc, nil).Genres(context.Background(), cred)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(counts) != 3 {
			t.Fatalf("expected 3 genres, got %d", len(counts))
		}
		if counts[0].Genre != "rock" || counts[0].Count != 2 {
			t.Errorf("expected rock first with 2, got %+v", counts[0])
		}
		if counts[1].Genre != "ambient" {
			t.Errorf("expected alphabetical tie-break, got %+v", counts[1])
		}
	})
}

func TestCompare(t *testing.T) {
	t.Run("Set Arithmetic On Loose Keys", func(t *testing.T) {
		mine := []models.Track{
			track("uri:1", "A", "X"),
			track("uri:2", "B", "Y"),
			track("uri:3", "C", "Z"),
		}
		theirs := []models.Track{
			track("uri:9", "a", "x"), // same song, different URI and case
			track("uri:8", "D", "W"),
		}

		svc := &spotiktest.StubService{
			TracksPageFn: func(ctx context.Context, token, pageURL string) ([]models.Track, string, error) {
				if token == "tok" {
					return mine, "", nil
				}
				return theirs, "", nil
			},
		}

		other := models.Credential{UserID: "user-2", AccessToken: "tok2"}
		result, err := NewPlaylistEngine(svc, nil).Compare(context.Background(), cred, other, 50)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if result.SharedCount != 1 || result.Shared[0].URI != "uri:1" {
			t.Errorf("expected uri:1 shared, got %+v", result.Shared)
		}
		if result.OnlyUser != 2 || result.OnlyOther != 1 {
			t.Errorf("expected 2/1 exclusives, got %d/%d", result.OnlyUser, result.OnlyOther)
		}
	})
}
