// Package sync reconciles spreadsheet rows into the transactions ledger.
package sync

// maxDetails caps per-row detail entries in a sync result. Large sheets
// still report full counters; only the row-by-row breakdown is truncated.
const maxDetails = 100

// RowDetail describes what happened to one sheet row.
type RowDetail struct {
	Row         int    `json:"row"` // 1-based data row number
	Action      string `json:"action"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// Stats accumulates counters for one sync run.
type Stats struct {
	Inserted int
	Updated  int
	Skipped  int
	Errors   int
	Details  []RowDetail
}

// AddDetail records a row outcome, dropping entries past the cap.
func (s *Stats) AddDetail(d RowDetail) {
	if len(s.Details) < maxDetails {
		s.Details = append(s.Details, d)
	}
}

// Processed returns the number of rows that reached a terminal outcome.
func (s *Stats) Processed() int {
	return s.Inserted + s.Updated + s.Skipped + s.Errors
}
