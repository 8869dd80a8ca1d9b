package analysis

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// RankedPair is an off-diagonal product pair with its inclusion frequency.
// Indices are 0-based.
type RankedPair struct {
	Product      int
	Conditioning int
	Frequency    float64
}

// RankPairs lists every pair j<k of a square inclusion matrix, sorted
// descending by frequency. Asymmetric matrices use max(m[j,k], m[k,j]).
func RankPairs(inclusion mat.Matrix) []RankedPair {
	n, _ := inclusion.Dims()
	out := make([]RankedPair, 0, n*(n-1)/2)
	for j := 0; j < n; j++ {
		for k := j + 1; k < n; k++ {
			f := inclusion.At(j, k)
			if v := inclusion.At(k, j); v > f {
				f = v
			}
			out = append(out, RankedPair{Product: j, Conditioning: k, Frequency: f})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Frequency > out[b].Frequency
	})
	return out
}

// Recovery compares inclusion frequency inside the true blocks against
// frequency across blocks.
type Recovery struct {
	Within float64
	Cross  float64
}

// Recovered reports whether within-block pairs are included more often.
func (r Recovery) Recovered() bool { return r.Within > r.Cross }

// BlockRecovery averages off-diagonal inclusion for pairs in the same block
// of blockSize consecutive products and for pairs in different blocks.
func BlockRecovery(inclusion mat.Matrix, blockSize int) Recovery {
	if blockSize < 1 {
		blockSize = 1
	}
	var within, cross float64
	var nw, nc int
	for _, p := range RankPairs(inclusion) {
		if p.Product/blockSize == p.Conditioning/blockSize {
			within += p.Frequency
			nw++
		} else {
			cross += p.Frequency
			nc++
		}
	}
	var r Recovery
	if nw > 0 {
		r.Within = within / float64(nw)
	}
	if nc > 0 {
		r.Cross = cross / float64(nc)
	}
	return r
}
