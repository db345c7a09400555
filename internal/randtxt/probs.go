// Package randtxt generates compressible pseudo-random payloads for codec
// tests. The output resembles asset data: words drawn from a skewed
// vocabulary, interrupted by byte runs and incompressible noise.
package randtxt

import (
	"math"
	"math/rand"
	"sort"
)

type prob struct {
	s string
	p float64
}

type probs []prob

func (s probs) Len() int           { return len(s) }
func (s probs) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s probs) Less(i, j int) bool { return s[i].s < s[j].s }

func (s probs) SearchProb(p float64) int {
	return sort.Search(len(s), func(k int) bool { return s[k].p >= p })
}

type byProb struct {
	probs
}

func (s byProb) Less(i, j int) bool {
	return s.probs[i].p < s.probs[j].p
}

// cdf computes the cumulative distribution for the n probabilities given by
// p.
func cdf(n int, p func(i int) prob) probs {
	prs := make(probs, n)
	sum := 0.0
	for i := range prs {
		pr := p(i)
		sum += pr.p
		prs[i] = pr
	}
	q := 1.0 / sum
	x := 0.0
	for i, pr := range prs {
		x += pr.p * q
		if x > 1.0 {
			x = 1.0
		}
		prs[i].p = x
	}
	if !sort.IsSorted(byProb{prs}) {
		panic("cdf not sorted")
	}
	return prs
}

const letters = "abcdefghijklmnopqrstuvwxyz_0123456789"

// vocabulary creates n random words with Zipf-like probabilities.
func vocabulary(rnd *rand.Rand, n int) probs {
	return cdf(n, func(i int) prob {
		b := make([]byte, 2+rnd.Intn(10))
		for j := range b {
			b[j] = letters[rnd.Intn(len(letters))]
		}
		return prob{string(b), 1 / math.Pow(float64(i+1), 1.1)}
	})
}

// Reader produces an endless payload.
type Reader struct {
	rnd   *rand.Rand
	words probs
	buf   []byte
}

// NewReader creates a payload reader. The same source produces the same
// payload.
func NewReader(src rand.Source) *Reader {
	rnd := rand.New(src)
	return &Reader{rnd: rnd, words: vocabulary(rnd, 400)}
}

func (r *Reader) word() string {
	i := r.words.SearchProb(r.rnd.Float64())
	if i >= len(r.words) {
		i = len(r.words) - 1
	}
	return r.words[i].s
}

// fill appends the next segment to the buffer.
func (r *Reader) fill() {
	switch x := r.rnd.Float64(); {
	case x < 0.75:
		r.buf = append(r.buf, r.word()...)
		if r.rnd.Intn(8) == 0 {
			r.buf = append(r.buf, '\n')
		} else {
			r.buf = append(r.buf, ' ')
		}
	case x < 0.9:
		n := 1 + r.rnd.Intn(48)
		for i := 0; i < n; i++ {
			r.buf = append(r.buf, byte(r.rnd.Intn(256)))
		}
	default:
		c := byte(r.rnd.Intn(256))
		n := 1 + r.rnd.Intn(600)
		for i := 0; i < n; i++ {
			r.buf = append(r.buf, c)
		}
	}
}

func (r *Reader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if len(r.buf) == 0 {
			r.fill()
		}
		k := copy(p[n:], r.buf)
		r.buf = r.buf[k:]
		n += k
	}
	return n, nil
}

// Payload returns n bytes generated from the seed.
func Payload(seed int64, n int) []byte {
	p := make([]byte, n)
	NewReader(rand.NewSource(seed)).Read(p)
	return p
}
