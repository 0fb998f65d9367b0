package collab

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/spectra-red/vulnpipe/internal/report"
)

// archivedReport is the SurrealDB record shape persisted by SurrealArchive,
// keyed by scan_id, mirroring the teacher's job-record CONTENT pattern.
type archivedReport struct {
	ID       string         `json:"id"`
	ScanID   string         `json:"scan_id"`
	Report   *report.Report `json:"report"`
	StoredAt time.Time      `json:"stored_at"`
}

// SurrealArchive implements Archive atop SurrealDB, grounded on the
// teacher's IngestWorkflow persistence pattern: a single CREATE keyed by
// type::thing, re-run as UPDATE on the rare id collision.
type SurrealArchive struct {
	db *surrealdb.DB
}

// NewSurrealArchive constructs a SurrealArchive over an already-connected
// db handle. Connection lifecycle is the caller's responsibility.
func NewSurrealArchive(db *surrealdb.DB) *SurrealArchive {
	return &SurrealArchive{db: db}
}

// Save persists r under the "report" table keyed by scanID, per spec.md
// §4.8 / §7. A pre-existing record for scanID is overwritten.
func (a *SurrealArchive) Save(ctx context.Context, scanID string, r *report.Report) error {
	rec := archivedReport{
		ID:       scanID,
		ScanID:   scanID,
		Report:   r,
		StoredAt: time.Now().UTC(),
	}

	query := `
		CREATE type::thing('report', $scan_id) CONTENT {
			id: $scan_id,
			scan_id: $scan_id,
			report: $report,
			stored_at: $stored_at
		};
	`
	_, err := surrealdb.Query[interface{}](ctx, a.db, query, map[string]interface{}{
		"scan_id":   scanID,
		"report":    rec.Report,
		"stored_at": rec.StoredAt,
	})
	if err != nil {
		updateQuery := `
			UPDATE type::thing('report', $scan_id) CONTENT {
				id: $scan_id,
				scan_id: $scan_id,
				report: $report,
				stored_at: $stored_at
			};
		`
		_, updateErr := surrealdb.Query[interface{}](ctx, a.db, updateQuery, map[string]interface{}{
			"scan_id":   scanID,
			"report":    rec.Report,
			"stored_at": rec.StoredAt,
		})
		if updateErr != nil {
			return fmt.Errorf("collab: save report %s: create failed (%v), update failed (%w)", scanID, err, updateErr)
		}
	}
	return nil
}
