package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

// AgeIndicators holds the per-row age columns: Y/N band flags (Infant,
// Toddler, Preschool, School) and free-text "ages accepted" fields.
type AgeIndicators map[string]any

// AgeBand is a named age range in months. High is nil for open-ended bands.
type AgeBand struct {
	Name string
	Low  int64
	High *int64
}

// FlagColumn is the Y/N indicator column for the band: its name without a
// trailing "s". School-age has no such column in any layout, so it only
// ever matches on text.
func (b AgeBand) FlagColumn() string {
	return strings.TrimSuffix(b.Name, "s")
}

func months(n int64) *int64 { return &n }

// AgeBands are checked in this order, which is also the label order.
var AgeBands = []AgeBand{
	{Name: "Infants", Low: 0, High: months(11)},
	{Name: "Toddlers", Low: 12, High: months(23)},
	{Name: "Preschool", Low: 24, High: months(59)},
	{Name: "School-age", Low: 60, High: nil},
}

// AgeRange is the derived ages_served label with its month bounds.
type AgeRange struct {
	Label string
	Min   *int64
	Max   *int64
}

// ClassifyAges derives the served age bands from a row's indicators.
//
// The running max is only raised by a finite high bound. An open-ended band
// never clears a finite max already computed, but when it is the only band
// matched the max stays nil.
func ClassifyAges(ind AgeIndicators) AgeRange {
	var texts []string
	for _, v := range ind {
		if v != nil {
			texts = append(texts, Text(v))
		}
	}
	if len(texts) == 0 {
		return AgeRange{}
	}

	fold := cases.Fold()
	for i, t := range texts {
		texts[i] = fold.String(t)
	}

	var (
		labels []string
		lo, hi *int64
	)
	for _, band := range AgeBands {
		if !bandMatches(ind, band, texts) {
			continue
		}
		labels = append(labels, band.Name)
		if lo == nil || band.Low < *lo {
			lo = months(band.Low)
		}
		if hi == nil || (band.High != nil && *band.High > *hi) {
			hi = nil
			if band.High != nil {
				hi = months(*band.High)
			}
		}
	}

	return AgeRange{Label: strings.Join(labels, ", "), Min: lo, Max: hi}
}

func bandMatches(ind AgeIndicators, band AgeBand, foldedTexts []string) bool {
	fold := cases.Fold()
	if v, ok := ind[band.FlagColumn()]; ok && v != nil && fold.String(Text(v)) == fold.String("Y") {
		return true
	}
	name := fold.String(band.Name)
	for _, t := range foldedTexts {
		if strings.Contains(t, name) {
			return true
		}
	}
	return false
}
