package fingerprint

import "math/bits"

const (
	// Base is the alphabet size used as the polynomial radix.
	Base uint64 = 255
	// Modulus is a prime larger than Base^ChunkSize.
	Modulus uint64 = 801385653117583579
)

// Hash evaluates the chunk polynomial directly:
//
//	(c1*a^(k-1) + c2*a^(k-2) + ... + ck) mod M
func Hash(chunk []byte) uint64 {
	var h uint64
	for _, c := range chunk {
		h = addMod(mulMod(h, Base), uint64(c))
	}
	return h
}

// Roller maintains the fingerprint of a sliding window of k bytes and
// updates it in constant time per byte.
type Roller struct {
	k      int
	window []byte
	pos    int
	filled int
	hash   uint64
	outPow uint64
}

// NewRoller returns a Roller for windows of length k.
func NewRoller(k int) *Roller {
	if k <= 0 {
		k = ChunkSize
	}
	return &Roller{
		k:      k,
		window: make([]byte, k),
		outPow: powMod(Base, uint64(k)),
	}
}

// Roll shifts c into the window. It returns the fingerprint of the current
// window and whether the window holds k bytes yet.
func (r *Roller) Roll(c byte) (uint64, bool) {
	h := mulMod(r.hash, Base)
	if r.filled == r.k {
		h = subMod(h, mulMod(uint64(r.window[r.pos]), r.outPow))
	} else {
		r.filled++
	}
	r.hash = addMod(h, uint64(c))
	r.window[r.pos] = c
	r.pos = (r.pos + 1) % r.k
	return r.hash, r.filled == r.k
}

// Sum returns the fingerprint of the current window.
func (r *Roller) Sum() uint64 {
	return r.hash
}

// Reset clears the window.
func (r *Roller) Reset() {
	clear(r.window)
	r.pos = 0
	r.filled = 0
	r.hash = 0
}

// Sequence returns the fingerprint of every k-length window of doc in order.
// It produces the same values as calling Hash on each element of Chunk(doc, k).
func Sequence(doc []byte, k int) []uint64 {
	n := Count(len(doc), k)
	if n == 0 {
		return nil
	}
	fps := make([]uint64, 0, n)
	r := NewRoller(k)
	for _, c := range doc {
		if h, full := r.Roll(c); full {
			fps = append(fps, h)
		}
	}
	return fps
}

// Fingerprints returns the fingerprint sequence of doc using ChunkSize.
func Fingerprints(doc []byte) []uint64 {
	return Sequence(doc, ChunkSize)
}

func mulMod(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	return bits.Rem64(hi, lo, Modulus)
}

// addMod and subMod expect operands already reduced below Modulus.
func addMod(a, b uint64) uint64 {
	s := a + b
	if s >= Modulus {
		s -= Modulus
	}
	return s
}

func subMod(a, b uint64) uint64 {
	if a >= b {
		return a - b
	}
	return a + (Modulus - b)
}

func powMod(base, exp uint64) uint64 {
	result := uint64(1)
	base %= Modulus
	for exp > 0 {
		if exp&1 == 1 {
			result = mulMod(result, base)
		}
		base = mulMod(base, base)
		exp >>= 1
	}
	return result
}
