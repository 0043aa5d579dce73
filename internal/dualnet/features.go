package dualnet

import "fmt"

// Color is the occupant of a board point. It is always the absolute
// stone color, never relative to a side to play — StoneMap snapshots are
// shared across plies that may have different players to move.
type Color int8

const (
	Empty Color = iota
	Black
	White
)

// Other returns the opposing color. Other(Empty) is Empty.
func (c Color) Other() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// StoneMap is the per-point color view supplied by the board module (§6,
// "consumed by the core"). Point indices run 0..N*N-1 in row-major order;
// the Feature Encoder never interprets them beyond that.
type StoneMap interface {
	At(point int) Color
}

// Policy is the dual-head network's move distribution: one probability (or
// logit, depending on backend) per point plus the pass move.
type Policy [NumMoves]float32

// BoardFeatures is one encoded position: NumBoardFeatures floats, laid out
// stone-minor (for each point, its NumStoneFeatures floats are contiguous;
// points are the outer stride). It is backed by a plain slice rather than
// a fixed array so batches can be built by concatenation without per-call
// copies.
type BoardFeatures []float32

// NewBoardFeatures allocates a zeroed BoardFeatures buffer ready to pass to
// EncodeFeatures.
func NewBoardFeatures() BoardFeatures {
	return make(BoardFeatures, NumBoardFeatures)
}

// EncodeFeatures is the Feature Encoder (§4.4): a pure, stateless
// transformation from a history of board snapshots and a side to play into
// the fixed-length, stone-minor feature buffer consumed by every Engine
// backend.
//
// history[0] is the current position; history[i] is the position i plies
// ago. len(history) must be in [1, History] — an empty history is a
// programmer error, as is history longer than History plies.
//
// out must have length NumBoardFeatures; EncodeFeatures overwrites every
// element, so calling it twice with identical inputs (even into a dirty
// buffer) writes identical bytes.
func EncodeFeatures(history []StoneMap, toPlay Color, out BoardFeatures) {
	if len(history) == 0 {
		panic("dualnet: EncodeFeatures requires at least the current position")
	}
	if len(history) > History {
		panic(fmt.Sprintf("dualnet: EncodeFeatures given %d plies of history, History is %d", len(history), History))
	}
	if len(out) != NumBoardFeatures {
		panic(fmt.Sprintf("dualnet: EncodeFeatures output buffer has length %d, want %d", len(out), NumBoardFeatures))
	}

	mine := toPlay
	theirs := toPlay.Other()

	toPlayFeature := float32(0)
	if toPlay == Black {
		toPlayFeature = 1
	}

	for p := 0; p < N*N; p++ {
		base := p * NumStoneFeatures
		for j := 0; j < History; j++ {
			dst := out[base+2*j : base+2*j+2]
			if j < len(history) {
				switch history[j].At(p) {
				case mine:
					dst[0], dst[1] = 1, 0
				case theirs:
					dst[0], dst[1] = 0, 1
				default:
					dst[0], dst[1] = 0, 0
				}
			} else {
				dst[0], dst[1] = 0, 0
			}
		}
		out[base+playerFeature] = toPlayFeature
	}
}

// sliceStoneMap adapts a plain []Color (row-major, length N*N) to StoneMap.
// Exported through SliceStoneMap for callers (tests and backends' board-module adapters) that
// already hold a flat color buffer rather than a richer board type.
type sliceStoneMap []Color

func (s sliceStoneMap) At(point int) Color { return s[point] }

// SliceStoneMap wraps a flat, row-major []Color as a StoneMap.
func SliceStoneMap(colors []Color) StoneMap { return sliceStoneMap(colors) }

// TransposeToCHW converts a stone-minor BoardFeatures buffer (point-major,
// channel-minor — the layout EncodeFeatures writes) into channel-major
// order, indexed channel*N*N+point. Some backends require this "NCHW"
// layout for their convolutions (§4.2, "Memory layout"); the Engine
// performs the transposition and it is not observable outside.
func TransposeToCHW(features BoardFeatures) BoardFeatures {
	out := make(BoardFeatures, NumBoardFeatures)
	planeSize := N * N
	for point := 0; point < planeSize; point++ {
		base := point * NumStoneFeatures
		for channel := 0; channel < NumStoneFeatures; channel++ {
			out[channel*planeSize+point] = features[base+channel]
		}
	}
	return out
}
