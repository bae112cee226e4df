package alias

import (
	"math"
)

// RatioSimilarity maps two non-negative magnitudes to (1/r)^1.5 where
// r = max/min. Both zero is identical; exactly one zero is unrelated.
func RatioSimilarity(a, b float64) float64 {
	a, b = math.Abs(a), math.Abs(b)
	switch {
	case a == 0 && b == 0:
		return 1
	case a == 0 || b == 0:
		return 0
	}
	r := math.Max(a, b) / math.Min(a, b)
	return math.Pow(1/r, 1.5)
}

// CosineOnCommon compares two keyed vectors over their shared keys only.
// ok is false when there are no shared keys.
func CosineOnCommon(a, b map[string]float64) (sim float64, common int, ok bool) {
	var dot, na, nb float64
	for k, va := range a {
		vb, found := b[k]
		if !found {
			continue
		}
		common++
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if common == 0 {
		return 0, 0, false
	}
	if na == 0 && nb == 0 {
		return 1, common, true
	}
	if na == 0 || nb == 0 {
		return 0, common, true
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb))), common, true
}

// JensenShannon returns the base-2 Jensen-Shannon divergence of two
// histograms, normalised to distributions. The result is in [0, 1]; ok is
// false if either histogram is empty.
func JensenShannon(p, q [24]float64) (float64, bool) {
	pn, okP := normalise(p)
	qn, okQ := normalise(q)
	if !okP || !okQ {
		return 0, false
	}

	var m [24]float64
	for i := range m {
		m[i] = (pn[i] + qn[i]) / 2
	}
	js := (klDivergence(pn, m) + klDivergence(qn, m)) / 2
	return clamp01(js), true
}

// PlaytimeSimilarity is 1 - JSD of two hour-of-day histograms
func PlaytimeSimilarity(p, q [24]float64) (float64, bool) {
	js, ok := JensenShannon(p, q)
	if !ok {
		return 0, false
	}
	return 1 - js, true
}

// klDivergence skips zero-probability terms of p; m is never zero where p
// is positive
func klDivergence(p, m [24]float64) float64 {
	var d float64
	for i := range p {
		if p[i] == 0 || m[i] == 0 {
			continue
		}
		d += p[i] * math.Log2(p[i]/m[i])
	}
	return d
}

func normalise(h [24]float64) ([24]float64, bool) {
	var sum float64
	for _, v := range h {
		if v > 0 {
			sum += v
		}
	}
	if sum == 0 {
		return h, false
	}
	var out [24]float64
	for i, v := range h {
		if v > 0 {
			out[i] = v / sum
		}
	}
	return out, true
}

// Jaccard is |A∩B| / |A∪B| over string sets; two empty sets score 0
func Jaccard(a, b []string) (float64, int) {
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}

	shared := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0, 0
	}
	return float64(shared) / float64(union), shared
}
