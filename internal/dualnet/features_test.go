package dualnet

import "testing"

func TestEncodeFeaturesSideToPlayPlane(t *testing.T) {
	empty := SliceStoneMap(make([]Color, N*N))

	out := NewBoardFeatures()
	EncodeFeatures([]StoneMap{empty}, Black, out)
	if got := out[playerFeature]; got != 1 {
		t.Fatalf("side-to-play plane for Black: got %v, want 1", got)
	}

	EncodeFeatures([]StoneMap{empty}, White, out)
	if got := out[playerFeature]; got != 0 {
		t.Fatalf("side-to-play plane for White: got %v, want 0", got)
	}
}

func TestEncodeFeaturesIsDeterministic(t *testing.T) {
	colors := make([]Color, N*N)
	colors[0] = Black
	colors[1] = White
	board := SliceStoneMap(colors)

	a := NewBoardFeatures()
	b := NewBoardFeatures()
	for i := range b {
		b[i] = -1 // dirty buffer; EncodeFeatures must overwrite every element
	}

	EncodeFeatures([]StoneMap{board}, Black, a)
	EncodeFeatures([]StoneMap{board}, Black, b)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("element %d differs between calls: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEncodeFeaturesMineVsTheirs(t *testing.T) {
	colors := make([]Color, N*N)
	colors[5] = Black
	colors[7] = White
	board := SliceStoneMap(colors)

	out := NewBoardFeatures()
	EncodeFeatures([]StoneMap{board}, Black, out)

	base5 := 5 * NumStoneFeatures
	if out[base5] != 1 || out[base5+1] != 0 {
		t.Fatalf("point 5 (mine) should be [1,0] in the current-ply plane, got [%v,%v]", out[base5], out[base5+1])
	}

	base7 := 7 * NumStoneFeatures
	if out[base7] != 0 || out[base7+1] != 1 {
		t.Fatalf("point 7 (theirs) should be [0,1] in the current-ply plane, got [%v,%v]", out[base7], out[base7+1])
	}
}

func TestEncodeFeaturesShorterHistoryZeroFillsOlderPlies(t *testing.T) {
	colors := make([]Color, N*N)
	colors[0] = Black
	board := SliceStoneMap(colors)

	out := NewBoardFeatures()
	EncodeFeatures([]StoneMap{board}, Black, out)

	base := 0 * NumStoneFeatures
	for ply := 1; ply < History; ply++ {
		if out[base+2*ply] != 0 || out[base+2*ply+1] != 0 {
			t.Fatalf("ply %d should be zero-filled absent history, got [%v,%v]", ply, out[base+2*ply], out[base+2*ply+1])
		}
	}
}

func TestEncodeFeaturesRejectsEmptyHistory(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for empty history")
		}
	}()
	EncodeFeatures(nil, Black, NewBoardFeatures())
}

func TestEncodeFeaturesRejectsWrongBufferLength(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic for a short output buffer")
		}
	}()
	empty := SliceStoneMap(make([]Color, N*N))
	EncodeFeatures([]StoneMap{empty}, Black, make(BoardFeatures, NumBoardFeatures-1))
}

func TestColorOther(t *testing.T) {
	cases := []struct{ in, want Color }{
		{Black, White},
		{White, Black},
		{Empty, Empty},
	}
	for _, c := range cases {
		if got := c.in.Other(); got != c.want {
			t.Errorf("%v.Other() = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTransposeToCHWPreservesEveryValue(t *testing.T) {
	in := NewBoardFeatures()
	for i := range in {
		in[i] = float32(i)
	}
	out := TransposeToCHW(in)

	planeSize := N * N
	for point := 0; point < planeSize; point++ {
		for channel := 0; channel < NumStoneFeatures; channel++ {
			got := out[channel*planeSize+point]
			want := in[point*NumStoneFeatures+channel]
			if got != want {
				t.Fatalf("point=%d channel=%d: got %v, want %v", point, channel, got, want)
			}
		}
	}
}
