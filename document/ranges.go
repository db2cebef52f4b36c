package document

import (
	"github.com/shopspring/decimal"
)

// Range is a closed integer interval.
type Range struct {
	Min int
	Max int
}

// CompressRanges groups a non-decreasing integer sequence into maximal
// contiguous runs. The sequence splits wherever the gap between
// consecutive elements is not exactly one. Empty input yields no ranges.
func CompressRanges(values []int) []Range {
	if len(values) == 0 {
		return nil
	}
	ranges := []Range{{Min: values[0], Max: values[0]}}
	for _, v := range values[1:] {
		last := &ranges[len(ranges)-1]
		if v-last.Max == 1 {
			last.Max = v
			continue
		}
		ranges = append(ranges, Range{Min: v, Max: v})
	}
	return ranges
}

// FrequencyScale converts subband indices to frequencies. The width is an
// injected instrument constant, not a package global.
type FrequencyScale struct {
	widthKHz decimal.Decimal
}

// NewFrequencyScale builds a scale from the subband width in kHz.
func NewFrequencyScale(widthKHz float64) FrequencyScale {
	return FrequencyScale{widthKHz: decimal.NewFromFloat(widthKHz)}
}

var khzPerMHz = decimal.NewFromInt(1000)

// SubbandMHz returns the start frequency of a subband in MHz.
func (f FrequencyScale) SubbandMHz(subband int) float64 {
	mhz, _ := decimal.NewFromInt(int64(subband)).Mul(f.widthKHz).Div(khzPerMHz).Float64()
	return mhz
}

// WidthKHz returns the subband width in kHz.
func (f FrequencyScale) WidthKHz() float64 {
	khz, _ := f.widthKHz.Float64()
	return khz
}

// Bands compresses a subband list into frequency intervals in MHz. Each
// interval's upper bound is exclusive and covers one full subband width
// beyond the last subband's start frequency.
func (f FrequencyScale) Bands(subbands []int) []FrequencyBand {
	ranges := CompressRanges(subbands)
	if len(ranges) == 0 {
		return nil
	}
	bands := make([]FrequencyBand, 0, len(ranges))
	for _, r := range ranges {
		lower := decimal.NewFromInt(int64(r.Min)).Mul(f.widthKHz).Div(khzPerMHz)
		upper := decimal.NewFromInt(int64(r.Max)).Mul(f.widthKHz).Add(f.widthKHz).Div(khzPerMHz)
		gte, _ := lower.Float64()
		lt, _ := upper.Float64()
		bands = append(bands, FrequencyBand{
			Value: FrequencyBounds{Gte: gte, Lt: lt},
			Unit:  "MHz",
		})
	}
	return bands
}
