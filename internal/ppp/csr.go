package ppp

import (
	"fmt"
	"math/rand/v2"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/stat/distuv"
)

// maxRejectRatio bounds rejection sampling for windows that fill only a
// sliver of their bounding box.
const maxRejectRatio = 1000

// SimulateCSR draws n points uniformly inside w by rejection sampling in the
// window's bounding box.
func SimulateCSR(w *Window, n int, src rand.Source) ([]orb.Point, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative point count %d", n)
	}
	b := w.Bound()
	ux := distuv.Uniform{Min: b.Min[0], Max: b.Max[0], Src: src}
	uy := distuv.Uniform{Min: b.Min[1], Max: b.Max[1], Src: src}

	pts := make([]orb.Point, 0, n)
	limit := maxRejectRatio * (n + 10)
	for attempts := 0; len(pts) < n; attempts++ {
		if attempts >= limit {
			return nil, fmt.Errorf("csr: placed %d of %d points after %d attempts", len(pts), n, attempts)
		}
		p := orb.Point{ux.Rand(), uy.Rand()}
		if w.Contains(p) {
			pts = append(pts, p)
		}
	}
	return pts, nil
}

// seededSource returns the generator for simulation i of a run seeded with
// seed. The stream depends only on (seed, i).
func seededSource(seed uint64, i int) rand.Source {
	return rand.NewPCG(seed, uint64(i))
}
