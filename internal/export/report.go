// Package export turns resolved aggregates into report rows and sinks them:
// a JSON writer for due-diligence reports and a Postgres snapshot store for
// cross-run durability. Persistence lives here, never in the kernel.
package export

import (
	"sort"
	"time"

	"dealroom/internal/resolution/models"
	"dealroom/internal/resolution/repository"
	id "dealroom/pkg/domain"
)

// Row is one canonical object in report shape. Superseded aggregates are
// excluded before rows are built; their observations already live on the
// retained aggregate.
type Row struct {
	ID               string         `json:"id"`
	DisplayName      string         `json:"display_name"`
	Vendor           string         `json:"vendor,omitempty"`
	MergedFields     map[string]any `json:"merged_fields,omitempty"`
	ObservationCount int            `json:"observation_count"`
	Entity           string         `json:"entity"`
}

// Report is the full export for one (deal, object type) repository.
type Report struct {
	DealID      string    `json:"deal_id"`
	ObjectType  string    `json:"object_type"`
	GeneratedAt time.Time `json:"generated_at"`
	Rows        []Row     `json:"rows"`
}

func rowFromAggregate(agg *models.Aggregate) Row {
	row := Row{
		ID:               string(agg.ID),
		DisplayName:      agg.DisplayName,
		MergedFields:     agg.MergedFields,
		ObservationCount: agg.ObservationCount(),
		Entity:           agg.Entity.String(),
	}
	if agg.Vendor.Present() {
		row.Vendor = agg.Vendor.Name()
	}
	return row
}

// Build snapshots a repository's live aggregates into a report. Rows are
// ordered by entity then display name so repeated exports of the same state
// are byte-identical.
func Build(repo *repository.Repository, now time.Time) Report {
	live := repo.Live()

	rows := make([]Row, 0, len(live))
	for _, agg := range live {
		rows = append(rows, rowFromAggregate(agg))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Entity != rows[j].Entity {
			return rows[i].Entity < rows[j].Entity
		}
		return rows[i].DisplayName < rows[j].DisplayName
	})

	return Report{
		DealID:      string(repo.DealID()),
		ObjectType:  repo.ObjectType().String(),
		GeneratedAt: now.UTC(),
		Rows:        rows,
	}
}

// Snapshot is the persistence shape for one aggregate, including superseded
// ones so the audit trail of a run survives across processes.
type Snapshot struct {
	AggregateID      id.AggregateID
	DealID           id.DealID
	ObjectType       id.ObjectType
	DisplayName      string
	CanonicalName    string
	Vendor           string
	VendorPresent    bool
	Entity           models.Entity
	MergedFields     map[string]any
	ObservationCount int
	SupersededBy     id.AggregateID
}

// Snapshots converts every aggregate in the repository, live and superseded,
// preserving repository insertion order.
func Snapshots(repo *repository.Repository) []Snapshot {
	all := repo.All()
	out := make([]Snapshot, 0, len(all))
	for _, agg := range all {
		out = append(out, Snapshot{
			AggregateID:      agg.ID,
			DealID:           agg.DealID,
			ObjectType:       agg.ObjectType,
			DisplayName:      agg.DisplayName,
			CanonicalName:    agg.CanonicalName,
			Vendor:           agg.Vendor.Name(),
			VendorPresent:    agg.Vendor.Present(),
			Entity:           agg.Entity,
			MergedFields:     agg.MergedFields,
			ObservationCount: agg.ObservationCount(),
			SupersededBy:     agg.SupersededBy,
		})
	}
	return out
}
