// Package dualnet implements the inference dispatch layer: a batching
// scheduler that coalesces many single-request clients into fixed-size
// batches for a backend-neutral Engine, plus the feature encoding that
// produces those requests' inputs.
package dualnet

// N is the board side length, fixed at build time.
const N = 19

// Board and feature geometry derived from N, matching the layout of the
// MiniGo dual_net.h constants this package was modeled on.
const (
	// NumMoves is the size of the policy output: every point plus one pass.
	NumMoves = N*N + 1

	// History is the number of plies of board history retained in the
	// feature planes.
	History = 8

	// NumStoneFeatures is the number of floats written per point: one pair
	// of planes (ours/theirs) per retained ply, plus a single
	// side-to-play plane.
	NumStoneFeatures = 2*History + 1

	// NumBoardFeatures is the total number of floats in one encoded
	// position.
	NumBoardFeatures = N * N * NumStoneFeatures

	// playerFeature is the index, within a point's NumStoneFeatures block,
	// of the side-to-play plane.
	playerFeature = 2 * History
)

// DefaultBatchSize is used when a Config does not set BatchSize.
const DefaultBatchSize = 1024

// DefaultWorkersPerDevice is the number of worker threads an Engine spawns
// per accelerator context absent an explicit override. Empirical tuning
// knob, not a contract (§9 of the design notes).
const DefaultWorkersPerDevice = 2
