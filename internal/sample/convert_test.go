package sample

import "testing"

func TestUpsampleFactor1IsCopy(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}
	out := Upsample(in, 1, 1)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestUpsampleFactor2TailReplicatesLastSample(t *testing.T) {
	in := []byte{10, 20, 30, 40} // 4 8-bit samples
	out := Upsample(in, 1, 2)

	if len(out) != 8 {
		t.Fatalf("len(out) = %d, want 8", len(out))
	}
	if out[6] != 40 || out[7] != 40 {
		t.Errorf("tail samples = %d,%d, want 40,40", out[6], out[7])
	}
}

func TestUpsampleFactor4Length(t *testing.T) {
	in := make([]byte, 10)
	out := Upsample(in, 1, 4)
	if len(out) != 40 {
		t.Fatalf("len(out) = %d, want 40", len(out))
	}
}

func TestWiden8to16(t *testing.T) {
	in := []byte{0x80, 0x00, 0xFF}
	out := Widen8to16(in)
	if len(out) != 6 {
		t.Fatalf("len(out) = %d, want 6", len(out))
	}
	// 0x80 (midpoint) -> (0x80-0x80)<<8 = 0
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("sample 0 = %d,%d, want 0,0", out[0], out[1])
	}
}

func TestWiden8to16NeverNarrows(t *testing.T) {
	// Widen8to16 is one-directional; verify it never produces fewer bytes.
	in := []byte{1, 2, 3}
	out := Widen8to16(in)
	if len(out) <= len(in) {
		t.Errorf("Widen8to16 must grow data, got %d <= %d", len(out), len(in))
	}
}
