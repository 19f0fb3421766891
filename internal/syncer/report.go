package syncer

import (
	"fmt"

	"github.com/carbsync/carbsync/internal/codec"
	"github.com/carbsync/carbsync/internal/models"
)

// Report is the outcome of importing one snapshot file.
type Report struct {
	Collection models.Collection
	Peer       string
	Applied    int
	Skipped    int
	Errors     []codec.RowError

	// NoData is set when the peer has not produced the file yet.
	NoData bool
	// Unchanged is set when the file content matched the last import and
	// was not merged again.
	Unchanged bool
}

// ErrorCount returns the number of rows that failed to decode.
func (r Report) ErrorCount() int {
	return len(r.Errors)
}

func (r Report) String() string {
	switch {
	case r.NoData:
		return fmt.Sprintf("%s from %s: no data available", r.Collection, r.Peer)
	case r.Unchanged:
		return fmt.Sprintf("%s from %s: unchanged", r.Collection, r.Peer)
	}

	return fmt.Sprintf("%s from %s: %d applied, %d skipped, %d errors",
		r.Collection, r.Peer, r.Applied, r.Skipped, r.ErrorCount())
}

// Totals sums applied, skipped and error counts over several reports.
func Totals(reports []Report) (applied, skipped, errors int) {
	for _, r := range reports {
		applied += r.Applied
		skipped += r.Skipped
		errors += r.ErrorCount()
	}

	return applied, skipped, errors
}
