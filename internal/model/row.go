package model

// RawRow maps a layout-specific column name to a scalar cell value: string,
// int64, float64, bool, time.Time, or nil for an empty cell.
type RawRow map[string]any

// Empty reports whether every value in the row is nil.
func (r RawRow) Empty() bool {
	for _, v := range r {
		if v != nil {
			return false
		}
	}
	return true
}

// RowState tracks how far a raw row progressed through the pipeline.
type RowState string

const (
	RowStateSkipped       RowState = "skipped"
	RowStateExtracted     RowState = "extracted"
	RowStateClassified    RowState = "classified"
	RowStateLocated       RowState = "located"
	RowStateBuilt         RowState = "built"
	RowStateFingerprinted RowState = "fingerprinted"
	RowStateReconciled    RowState = "reconciled"
)

// Outcome is the reconciliation decision taken for a provider.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)
