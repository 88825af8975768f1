package story

import "math"

// Sanitize returns a copy of s with negative score and comment samples clamped to zero.
// Timestamps, gilded and hotness are copied as is. Meta maxima are recomputed when meta
// is present. Applying it twice yields the same record as applying it once
func Sanitize(s Story) Story {
	out := s.Clone()
	clampNegatives(out.History.Score)
	clampNegatives(out.History.Comments)
	if out.Meta != nil {
		out.Meta.MaxScore, out.Meta.MaxComments, out.Meta.MaxGilded = Maxima(out.History)
	}
	return out
}

// Maxima returns the maxima of the clamped score and comment series and of the raw
// gilded series. Empty series yield zero
func Maxima(h History) (maxScore, maxComments, maxGilded int64) {
	return maxClamped(h.Score), maxClamped(h.Comments), maxRaw(h.Gilded)
}

func clampNegatives(xs []int64) {
	for i, v := range xs {
		if v < 0 {
			xs[i] = 0
		}
	}
}

func maxClamped(xs []int64) int64 {
	var m int64
	for _, v := range xs {
		if v > m {
			m = v
		}
	}
	return m
}

func maxRaw(xs []int64) int64 {
	if len(xs) == 0 {
		return 0
	}
	m := int64(math.MinInt64)
	for _, v := range xs {
		if v > m {
			m = v
		}
	}
	return m
}
