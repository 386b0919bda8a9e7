package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealroom/internal/resolution/models"
	"dealroom/internal/resolution/repository"
	id "dealroom/pkg/domain"
)

func seedRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.New("deal-1", id.ObjectTypeApplication)
	require.NoError(t, err)

	ctx := context.Background()
	inputs := []repository.FindOrCreateInput{
		{Name: "Salesforce", Entity: models.EntityTarget, SourceType: models.SourceTable, Confidence: 0.9},
		{Name: "SALESFORCE", Entity: models.EntityTarget, SourceType: models.SourceManual, Confidence: 1.0},
		{Name: "Workday", Entity: models.EntityBuyer, Vendor: models.NewVendor("Workday Inc"), SourceType: models.SourceTable, Confidence: 0.8},
	}
	for _, input := range inputs {
		_, err := repo.FindOrCreate(ctx, input)
		require.NoError(t, err)
	}
	return repo
}

func TestBuild_RowsSortedAndCounted(t *testing.T) {
	repo := seedRepo(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	report := Build(repo, now)

	assert.Equal(t, "deal-1", report.DealID)
	assert.Equal(t, "application", report.ObjectType)
	assert.Equal(t, now, report.GeneratedAt)
	require.Len(t, report.Rows, 2)

	// buyer sorts before target
	assert.Equal(t, "buyer", report.Rows[0].Entity)
	assert.Equal(t, "Workday", report.Rows[0].DisplayName)
	assert.Equal(t, "Workday Inc", report.Rows[0].Vendor)
	assert.Equal(t, 1, report.Rows[0].ObservationCount)

	assert.Equal(t, "target", report.Rows[1].Entity)
	assert.Equal(t, "Salesforce", report.Rows[1].DisplayName)
	assert.Empty(t, report.Rows[1].Vendor, "absent vendor stays empty in the report")
	assert.Equal(t, 2, report.Rows[1].ObservationCount)
}

func TestBuild_ExcludesSuperseded(t *testing.T) {
	repo, err := repository.New("deal-1", id.ObjectTypeApplication)
	require.NoError(t, err)

	ctx := context.Background()
	winner, err := repo.FindOrCreate(ctx, repository.FindOrCreateInput{
		Name: "Salesforce", Entity: models.EntityTarget, SourceType: models.SourceTable, Confidence: 0.9,
	})
	require.NoError(t, err)
	loser, err := repo.FindOrCreate(ctx, repository.FindOrCreateInput{
		Name: "Salesforce CRM Platform", Entity: models.EntityTarget, SourceType: models.SourceTable, Confidence: 0.9,
	})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSuperseded(ctx, winner.ID, loser.ID))

	report := Build(repo, time.Now())
	require.Len(t, report.Rows, 1)
	assert.Equal(t, string(winner.ID), report.Rows[0].ID)
	assert.Equal(t, 2, report.Rows[0].ObservationCount, "absorbed observation counts toward the winner")

	// Snapshots keep the full history including the superseded loser.
	snaps := Snapshots(repo)
	require.Len(t, snaps, 2)
	var found bool
	for _, snap := range snaps {
		if snap.AggregateID == loser.ID {
			found = true
			assert.Equal(t, winner.ID, snap.SupersededBy)
		}
	}
	assert.True(t, found)
}

func TestWriteJSON_Deterministic(t *testing.T) {
	repo := seedRepo(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var first, second bytes.Buffer
	require.NoError(t, WriteJSON(&first, Build(repo, now)))
	require.NoError(t, WriteJSON(&second, Build(repo, now)))

	assert.Equal(t, first.String(), second.String())
	assert.Contains(t, first.String(), `"display_name": "Salesforce"`)
}
