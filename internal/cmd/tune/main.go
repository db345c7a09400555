// Command tune searches RTech encoder configurations that provide the best
// speed for a set of compression ratio slots on the Silesia corpus.
package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/kr/pretty"
	"github.com/ulikunitz/lz"
	"github.com/ulikunitz/zdata"

	"github.com/rpaktools/rpak/internal/tuning"
	"github.com/rpaktools/rpak/rtech"
)

type candidate struct {
	disabled bool
	cfg      rtech.EncoderConfig
}

type preset struct {
	present bool
	cfg     rtech.EncoderConfig
	result  testing.BenchmarkResult
}

var (
	_silesiaFiles []tuning.File
	silesiaOnce   sync.Once
)

func silesiaFiles() []tuning.File {
	silesiaOnce.Do(func() {
		var err error
		_silesiaFiles, err = tuning.Files(zdata.Silesia)
		if err != nil {
			panic(fmt.Errorf("silesiaFiles() error %w", err))
		}
	})
	return _silesiaFiles
}

func writerBenchmark(cfg rtech.EncoderConfig) func(b *testing.B) {
	return func(b *testing.B) {
		files := silesiaFiles()
		size := tuning.Size(files)
		b.SetBytes(size)
		var (
			err            error
			compressedSize int64
		)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			compressedSize, err = tuning.RTechCompress(files, cfg)
			if err != nil {
				b.Fatalf("RTechCompress error %s", err)
			}
		}
		b.StopTimer()
		r := float64(compressedSize) / float64(size)
		b.ReportMetric(r, "c/u")
	}
}

// mbPerSec returns the Megabytes (1 000 000 bytes) per seconds that are
// processed.
func mbPerSec(r testing.BenchmarkResult) float64 {
	if v, ok := r.Extra["MB/s"]; ok {
		return v
	}
	if r.Bytes <= 0 || r.T <= 0 || r.N <= 0 {
		return 0
	}
	return (float64(r.Bytes) * float64(r.N) / 1e6) / r.T.Seconds()
}

func ratio(r testing.BenchmarkResult) float64 {
	if x, ok := r.Extra["c/u"]; ok {
		return x
	}
	return math.NaN()
}

// Returns the slot index the ratio qualifies for. If no slot can be found ok
// will be false.
func slot(slots []float64, ratio float64) (i int, ok bool) {
	for i, r := range slots {
		if ratio > r {
			return i - 1, i > 0
		}
	}
	return len(slots) - 1, true
}

// worse reports whether a can't compress better than b because it uses
// the same match finder with a smaller window and smaller hash tables.
func worse(a, b *rtech.EncoderConfig) bool {
	if a == nil || b == nil || a == b {
		return false
	}
	d, e := a.WindowSize, b.WindowSize
	switch x := a.LZ.(type) {
	case *lz.HSConfig:
		y, ok := b.LZ.(*lz.HSConfig)
		if !(ok && x.InputLen == y.InputLen) {
			return false
		}
		return d <= e && x.HashBits <= y.HashBits
	case *lz.DHSConfig:
		y, ok := b.LZ.(*lz.DHSConfig)
		if !ok {
			return false
		}
		if !(x.InputLen1 == y.InputLen1 && x.InputLen2 == y.InputLen2) {
			return false
		}
		return d <= e && x.HashBits1 <= y.HashBits1 && x.HashBits2 <= y.HashBits2
	case *lz.BUHSConfig:
		y, ok := b.LZ.(*lz.BUHSConfig)
		if !(ok && x.InputLen == y.InputLen) {
			return false
		}
		return d <= e && x.HashBits <= y.HashBits && x.BucketSize <= y.BucketSize
	default:
		return false
	}
}

func findPresets(slots []float64, candidates []candidate) []preset {
	if len(slots) == 0 {
		log.Fatalf("no slots defined")
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i] > slots[j]
	})
	fmt.Printf("slots %.3f\n", slots)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	presets := make([]preset, len(slots))

	i := 0
	n := len(candidates)
	for len(candidates) > 0 {
		k := len(candidates) - 1
		c := candidates[k]
		candidates = candidates[:k]
		if c.disabled {
			continue
		}
		n--

		i++
		result := testing.Benchmark(writerBenchmark(c.cfg))
		fmt.Printf("%d-%d %s\n", i, n, result)
		si, ok := slot(slots, ratio(result))
		if !ok {
			for j := range candidates {
				p := &candidates[j]
				if p.disabled {
					continue
				}
				if worse(&p.cfg, &c.cfg) {
					p.disabled = true
					n--
				}
			}
			continue
		}
		v := mbPerSec(result)
		p := presets[si]
		if p.present && v <= mbPerSec(p.result) {
			fmt.Printf("slot %d - not faster\n", si+1)
			continue
		}
		presets[si] = preset{
			present: true,
			cfg:     c.cfg,
			result:  result,
		}
		fmt.Printf("slot %d - update\n", si+1)
		pretty.Println(c.cfg.LZ)
	}
	return presets
}

func printPresets(presets []preset) {
	fmt.Printf("\n\n### Result ###\n\n")

	for si, p := range presets {
		if si > 0 {
			fmt.Printf("\n")
		}
		if !p.present {
			fmt.Printf("slot %d - not present\n", si+1)
			continue
		}
		fmt.Printf("slot %d - \t%.3f c/u\t%.2f MB/s\twindow %d\n",
			si+1, ratio(p.result), mbPerSec(p.result),
			p.cfg.WindowSize)
		pretty.Println(p.cfg.LZ)
	}
}

func makeConfig(cfg lz.SeqConfig, windowSize int) candidate {
	c := rtech.EncoderConfig{
		ChunkBits:  20,
		BlockBits:  20,
		WindowSize: windowSize,
		LZ:         cfg,
	}
	c.SetDefaults()
	return candidate{cfg: c}
}

func appendHSConfigs(x []candidate) (y []candidate) {
	y = x
	for windowExp := 15; windowExp <= 22; windowExp++ {
		for hashBits := 4; hashBits <= 23; hashBits++ {
			for _, inputLen := range []int{3, 4} {
				y = append(y, makeConfig(
					&lz.HSConfig{
						InputLen: inputLen,
						HashBits: hashBits,
					},
					1<<windowExp,
				))
			}
		}
	}
	return y
}

func appendDHSConfigs(x []candidate) (y []candidate) {
	y = x
	for windowExp := 15; windowExp <= 22; windowExp++ {
		for hashBits := 12; hashBits <= 20; hashBits += 2 {
			y = append(y, makeConfig(
				&lz.DHSConfig{
					InputLen1: 3,
					HashBits1: hashBits,
					InputLen2: 6,
					HashBits2: hashBits + 2,
				},
				1<<windowExp,
			))
		}
	}
	return y
}

func appendBUHSConfigs(x []candidate) (y []candidate) {
	y = x
	for windowExp := 15; windowExp <= 22; windowExp++ {
		for hashBits := 4; hashBits <= 23; hashBits++ {
			for bucketSize := 4; bucketSize <= 30; bucketSize++ {
				y = append(y, makeConfig(
					&lz.BUHSConfig{
						InputLen:   3,
						HashBits:   hashBits,
						BucketSize: bucketSize,
					},
					1<<windowExp,
				))
			}
		}
	}
	return y
}

func main() {
	testing.Init()
	candidates := appendHSConfigs(nil)
	candidates = appendDHSConfigs(candidates)
	candidates = appendBUHSConfigs(candidates)

	slots := []float64{0.40, 0.38, 0.36, 0.34,
		0.32, 0.30, 0.28}
	printPresets(findPresets(slots, candidates))
}
