package profile

import "testing"

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestVerifyClean(t *testing.T) {
	exp := pattern(64)
	act := append([]byte{}, exp...)
	for _, length := range []int{1, 2, 3, 4, 5, 63, 64} {
		res := Verify(exp, act, length)
		if res.Count() != 0 {
			t.Errorf("len %d: %d mismatches", length, res.Count())
		}
		if want := (length + 3) / 4; res.Words != want {
			t.Errorf("len %d: examined %d words, want %d", length, res.Words, want)
		}
	}
}

func TestVerifyMismatch(t *testing.T) {
	exp := pattern(32)
	act := append([]byte{}, exp...)
	act[9] ^= 0xff
	res := Verify(exp, act, 32)
	if res.Count() != 1 {
		t.Fatalf("%d mismatches, want 1", res.Count())
	}
	mm := res.Mismatches[0]
	if mm.Word != 2 {
		t.Errorf("mismatch at word %d, want 2", mm.Word)
	}
	if mm.Got == mm.Want {
		t.Error("got equals want on a mismatch")
	}
}

// Bytes past the requested length must not contribute, even when they
// differ wildly.
func TestVerifyIgnoresTailGarbage(t *testing.T) {
	exp := pattern(8)
	act := append([]byte{}, exp...)
	act[5] = 0xaa
	act[6] = 0xbb
	act[7] = 0xcc
	if res := Verify(exp, act, 5); res.Count() != 0 {
		t.Errorf("%d mismatches from ignored bytes", res.Count())
	}
	// A corrupt byte inside the valid tail still counts.
	if res := Verify(exp, act, 6); res.Count() != 1 {
		t.Error("corrupt valid tail byte not detected")
	}
}

func TestModeString(t *testing.T) {
	for _, m := range AllModes() {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatal(err)
		}
		if parsed != m {
			t.Errorf("parsed %v, want %v", parsed, m)
		}
	}
	if _, err := ParseMode("warp+speed"); err == nil {
		t.Error("bogus mode accepted")
	}
}
