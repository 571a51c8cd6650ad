package correct

import (
	"errors"
	"math"

	"github.com/dave/gpxele/geo"
)

// LargeChange is the change in meters above which a correction counts as large.
const LargeChange = 5.0

// ErrEmptyStatistics is returned by Summarize when no point was corrected.
var ErrEmptyStatistics = errors.New("no corrected points to summarize")

// Statistics compares the corrected track with the original one.
type Statistics struct {
	PointsCorrected  int     `json:"points_corrected"`
	AverageChange    float64 `json:"average_change_m"`
	MaxChange        float64 `json:"max_change_m"`
	LargeChangeCount int     `json:"large_change_count"`

	OriginalGain   float64 `json:"original_gain_m"`
	OriginalLoss   float64 `json:"original_loss_m"`
	CorrectedGain  float64 `json:"corrected_gain_m"`
	CorrectedLoss  float64 `json:"corrected_loss_m"`
	GainDifference float64 `json:"gain_difference_m"`
	LossDifference float64 `json:"loss_difference_m"`
}

// Summarize reduces the deltas and the two full elevation series to Statistics. The series are the whole track, not
// only the corrected points. With no deltas it returns ErrEmptyStatistics.
func Summarize(deltas []Delta, original, corrected []float64) (Statistics, error) {
	if len(deltas) == 0 {
		return Statistics{}, ErrEmptyStatistics
	}

	var st Statistics
	var total float64
	for _, d := range deltas {
		total += d.Change
		st.MaxChange = math.Max(st.MaxChange, d.Change)
		if d.Change > LargeChange {
			st.LargeChangeCount++
		}
	}
	st.PointsCorrected = len(deltas)
	st.AverageChange = total / float64(len(deltas))

	st.OriginalGain, st.OriginalLoss = geo.GainLoss(original)
	st.CorrectedGain, st.CorrectedLoss = geo.GainLoss(corrected)
	st.GainDifference = math.Abs(st.OriginalGain - st.CorrectedGain)
	st.LossDifference = math.Abs(st.OriginalLoss - st.CorrectedLoss)
	return st, nil
}
