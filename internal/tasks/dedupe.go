package tasks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spotik/spotik/internal/models"
	"github.com/spotik/spotik/internal/shared"
)

// KeyPolicy names the identity key used to decide duplicate equality.
type KeyPolicy string

const (
	// KeyLoose keys on (title, primary artist). Default for the
	// destructive remove-duplicates path.
	KeyLoose KeyPolicy = "loose"

	// KeyStrict keys on (title, primary artist, album, duration).
	// Default for the read-only find-duplicates inspection path.
	KeyStrict KeyPolicy = "strict"
)

// ParseKeyPolicy maps a request parameter onto a [KeyPolicy], using
// fallback when the parameter is empty.
func ParseKeyPolicy(s string, fallback KeyPolicy) (KeyPolicy, error) {
	switch KeyPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case KeyLoose:
		return KeyLoose, nil
	case KeyStrict:
		return KeyStrict, nil
	default:
		return "", fmt.Errorf("%w: unknown key policy %q", shared.ErrInvalidInput, s)
	}
}

// Key computes the identity key for a track under the policy.
//
// Title and artist are compared case-insensitively with surrounding
// whitespace stripped, so remote re-tagging of capitalization does not
// defeat detection.
func (p KeyPolicy) Key(t models.Track) string {
	parts := []string{
		strings.ToLower(strings.TrimSpace(t.Title)),
		strings.ToLower(strings.TrimSpace(t.Artist)),
	}
	if p == KeyStrict {
		parts = append(parts,
			strings.ToLower(strings.TrimSpace(t.Album)),
			strconv.Itoa(t.DurationMS),
		)
	}
	return strings.Join(parts, "\x1f")
}

// Partition is the retain/remove split produced by [PartitionTracks].
type Partition struct {
	Retained   []models.Track `json:"retained"`
	Duplicates []models.Track `json:"duplicates"`
}

// PartitionTracks splits items into first occurrences and duplicates
// under the policy's identity key.
//
// Pure and order-sensitive: items are scanned in the given order, the
// first holder of each key is retained, and every later holder is a
// duplicate. Re-running on Retained yields no further duplicates.
func PartitionTracks(items []models.Track, policy KeyPolicy) Partition {
	part := Partition{
		Retained:   []models.Track{},
		Duplicates: []models.Track{},
	}

	seen := make(map[string]bool, len(items))
	for _, item := range items {
		key := policy.Key(item)
		if seen[key] {
			part.Duplicates = append(part.Duplicates, item)
			continue
		}
		seen[key] = true
		part.Retained = append(part.Retained, item)
	}

	return part
}
