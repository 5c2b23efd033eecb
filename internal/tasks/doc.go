// Package tasks implements the playlist pipeline: aggregation, duplicate
// detection, and batched mutation.
//
// # Pipeline
//
// [PlaylistEngine] drives each operation through three strictly
// sequential stages:
//
//  1. [CollectAll] : follow next cursors until the remote reports no
//     further page, preserving remote order. Any page failure aborts the
//     walk with no partial result; repeated cursors trip
//     [shared.ErrPaginationLoop].
//
//  2. [PartitionTracks] : pure, order-sensitive retain/remove split.
//     The first holder of an identity key is retained, later holders are
//     duplicates. [KeyPolicy] selects between the loose (title, artist)
//     and strict (title, artist, album, duration) keys.
//
//  3. [Mutator] : size-limited batched rewrites. Removal chunks are
//     isolated (continue-on-error with a per-chunk [MutationReport]);
//     insertion preserves submission order and stops at the first
//     failure; [Mutator.ReplaceAll] models the delete-before-insert
//     rewrite with an explicit non-atomic window and a three-way
//     [ReplaceState].
//
// # Operations
//
// RemoveDuplicates, FindDuplicates, Shuffle, Copy compose all three
// stages. TopTracks, Genres, and Compare are read-only aggregations
// with simple counting or set arithmetic on top.
package tasks
