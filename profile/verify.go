// Package profile measures flash transfer times across the speed and
// transport matrix and verifies read-back content against a reference
// buffer.
package profile

import "encoding/binary"

// Mismatch records one differing 32-bit word of a verification pass.
type Mismatch struct {
	// Word is the 32-bit word index within the compared buffers.
	Word int
	Got  uint32
	Want uint32
}

// Result is the outcome of one verification pass.
type Result struct {
	// Words is how many 32-bit words were examined: ceil(length/4).
	Words      int
	Mismatches []Mismatch
}

// Count returns the number of mismatching words.
func (r Result) Count() int { return len(r.Mismatches) }

// Verify compares length bytes of actual against expected, word by word.
// Full words are compared over all 32 bits. When length is not a multiple
// of four, the final word is compared only over its length%4 valid bytes;
// bytes beyond the requested length are ignored on both sides. The
// buffers must each hold at least length bytes.
func Verify(expected, actual []byte, length int) Result {
	words := (length + 3) / 4
	res := Result{Words: words}
	for j := 0; j < words; j++ {
		valid := length - j*4
		if valid > 4 {
			valid = 4
		}
		want := tailWord(expected[j*4:], valid)
		got := tailWord(actual[j*4:], valid)
		if got != want {
			res.Mismatches = append(res.Mismatches, Mismatch{Word: j, Got: got, Want: want})
		}
	}
	return res
}

// tailWord assembles a little-endian word from the first valid bytes of
// b, zero-padding the rest.
func tailWord(b []byte, valid int) uint32 {
	var w [4]byte
	copy(w[:], b[:valid])
	return binary.LittleEndian.Uint32(w[:])
}
