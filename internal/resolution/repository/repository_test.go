package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealroom/internal/resolution/models"
	id "dealroom/pkg/domain"
	dErrors "dealroom/pkg/domain-errors"
)

func newAppRepo(t *testing.T, opts ...Option) *Repository {
	t.Helper()
	repo, err := New("deal-1", id.ObjectTypeApplication, opts...)
	require.NoError(t, err)
	return repo
}

func input(name string, entity models.Entity) FindOrCreateInput {
	return FindOrCreateInput{
		Name:       name,
		Entity:     entity,
		SourceType: models.SourceTable,
		Confidence: 0.9,
		Evidence:   "inventory sheet",
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", id.ObjectTypeApplication)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = New("deal-1", id.ObjectType("spreadsheet"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestFindOrCreate_CaseInsensitiveMerge(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	var agg *models.Aggregate
	for _, name := range []string{"Salesforce", "salesforce", "SALESFORCE"} {
		var err error
		agg, err = repo.FindOrCreate(ctx, input(name, models.EntityTarget))
		require.NoError(t, err)
	}

	assert.Equal(t, 3, agg.ObservationCount())
	assert.Len(t, repo.All(), 1, "three casings resolve to one aggregate")
	assert.Equal(t, "salesforce", agg.CanonicalName)
	assert.Equal(t, "Salesforce", agg.DisplayName, "display name keeps the first raw spelling")
}

func TestFindOrCreate_EntitySeparation(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	target, err := repo.FindOrCreate(ctx, input("Office 365", models.EntityTarget))
	require.NoError(t, err)
	buyer, err := repo.FindOrCreate(ctx, input("Office 365", models.EntityBuyer))
	require.NoError(t, err)

	assert.NotEqual(t, target.ID, buyer.ID)

	targets := repo.FindByEntity(models.EntityTarget)
	require.Len(t, targets, 1)
	assert.Equal(t, target.ID, targets[0].ID)
	for _, agg := range targets {
		assert.NotEqual(t, models.EntityBuyer, agg.Entity)
	}
}

func TestFindOrCreate_VendorDistinguishesIdentity(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	noVendor, err := repo.FindOrCreate(ctx, input("Homegrown Tool", models.EntityTarget))
	require.NoError(t, err)

	in := input("Homegrown Tool", models.EntityTarget)
	in.Vendor = models.NewVendor("unknown")
	literal, err := repo.FindOrCreate(ctx, in)
	require.NoError(t, err)

	assert.NotEqual(t, noVendor.ID, literal.ID, "absent vendor and literal 'unknown' are distinct identities")
}

func TestFindOrCreate_InvalidNameIsDropped(t *testing.T) {
	repo := newAppRepo(t)

	_, err := repo.FindOrCreate(context.Background(), input("!!!", models.EntityTarget))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidName))
	assert.Empty(t, repo.All(), "no wildcard aggregate may be created")
}

func TestFindOrCreate_Determinism(t *testing.T) {
	ctx := context.Background()

	// Two independent repositories over the same observations yield
	// identical aggregate ids.
	first := newAppRepo(t)
	second := newAppRepo(t)

	a1, err := first.FindOrCreate(ctx, input("Workday", models.EntityTarget))
	require.NoError(t, err)
	a2, err := second.FindOrCreate(ctx, input("Workday", models.EntityTarget))
	require.NoError(t, err)

	assert.Equal(t, a1.ID, a2.ID)
}

func TestAddObservation_EntityMismatch(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	agg, err := repo.FindOrCreate(ctx, input("Salesforce", models.EntityTarget))
	require.NoError(t, err)

	buyerObs, err := models.NewObservation(models.SourceManual, 1, "", time.Now(), "deal-1", models.EntityBuyer, nil)
	require.NoError(t, err)

	_, err = repo.AddObservation(ctx, agg.ID, buyerObs)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEntityMismatch))
	assert.Equal(t, 1, agg.ObservationCount())
}

func TestAddObservation_UnknownAggregate(t *testing.T) {
	repo := newAppRepo(t)

	obs, err := models.NewObservation(models.SourceManual, 1, "", time.Now(), "deal-1", models.EntityTarget, nil)
	require.NoError(t, err)

	_, err = repo.AddObservation(context.Background(), "app-TARGET-00000000", obs)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestFindSimilar(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	_, err := repo.FindOrCreate(ctx, input("Microsoft Office 365", models.EntityTarget))
	require.NoError(t, err)
	_, err = repo.FindOrCreate(ctx, input("Workday", models.EntityTarget))
	require.NoError(t, err)

	similar, err := repo.FindSimilar("microsoft office 365", 0.85, 5)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "microsoft office 365", similar[0].CanonicalName)

	// Low token overlap stays below the default threshold.
	similar, err = repo.FindSimilar("microsoft teams", 0.85, 5)
	require.NoError(t, err)
	assert.Empty(t, similar)
}

func TestFindSimilar_ExcludesSuperseded(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	keep, err := repo.FindOrCreate(ctx, input("Workday", models.EntityTarget))
	require.NoError(t, err)

	in := input("Workday", models.EntityTarget)
	in.Vendor = models.NewVendor("Workday Inc")
	dupe, err := repo.FindOrCreate(ctx, in)
	require.NoError(t, err)
	require.NotEqual(t, keep.ID, dupe.ID)

	require.NoError(t, repo.MarkSuperseded(ctx, keep.ID, dupe.ID))

	similar, err := repo.FindSimilar("workday", 0.85, 5)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, keep.ID, similar[0].ID)
}

func TestMarkSuperseded_TransfersObservationsAndIsIdempotent(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	keep, err := repo.FindOrCreate(ctx, input("Workday", models.EntityTarget))
	require.NoError(t, err)

	in := input("Workday HCM Platform", models.EntityTarget)
	dupe, err := repo.FindOrCreate(ctx, in)
	require.NoError(t, err)

	require.NoError(t, repo.MarkSuperseded(ctx, keep.ID, dupe.ID))
	assert.Equal(t, 2, keep.ObservationCount())
	assert.True(t, dupe.Superseded())
	assert.Equal(t, keep.ID, dupe.SupersededBy)

	// Re-marking after a cancelled pass resumes without double-absorbing.
	require.NoError(t, repo.MarkSuperseded(ctx, keep.ID, dupe.ID))
	assert.Equal(t, 2, keep.ObservationCount())

	assert.Len(t, repo.Live(), 1)
	assert.Len(t, repo.All(), 2, "superseded aggregates keep their provenance")
}

func TestEndToEndScenario_FiveAggregates(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	type fact struct {
		name   string
		entity models.Entity
		source models.SourceType
		vendor string
	}
	facts := []fact{
		{"Salesforce", models.EntityTarget, models.SourceTable, ""},
		{"salesforce", models.EntityTarget, models.SourceLLMProse, ""},
		{"SALESFORCE", models.EntityTarget, models.SourceLLMProse, ""},
		{"SAP ERP", models.EntityTarget, models.SourceTable, "SAP"},
		{"SAP SuccessFactors", models.EntityTarget, models.SourceTable, "SAP"},
		{"Office 365", models.EntityTarget, models.SourceTable, ""},
		{"Office 365", models.EntityBuyer, models.SourceTable, ""},
	}

	for _, f := range facts {
		in := input(f.name, f.entity)
		in.SourceType = f.source
		in.Vendor = models.NewVendor(f.vendor)
		_, err := repo.FindOrCreate(ctx, in)
		require.NoError(t, err)
	}

	all := repo.All()
	require.Len(t, all, 5)

	byName := map[string]*models.Aggregate{}
	for _, agg := range all {
		byName[agg.CanonicalName+"/"+agg.Entity.String()] = agg
	}

	salesforce := byName["salesforce/target"]
	require.NotNil(t, salesforce)
	assert.Equal(t, 3, salesforce.ObservationCount())

	// Two distinct SAP aggregates despite identical vendor and entity.
	assert.NotNil(t, byName["sap/target"])
	assert.NotNil(t, byName["sap successfactors/target"])

	// Two distinct Office 365 aggregates, one per entity.
	assert.NotNil(t, byName["office 365/target"])
	assert.NotNil(t, byName["office 365/buyer"])
}

func TestFindOrCreate_Concurrent(t *testing.T) {
	repo := newAppRepo(t)
	ctx := context.Background()

	const goroutines = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := repo.FindOrCreate(ctx, input("Salesforce", models.EntityTarget))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all := repo.All()
	require.Len(t, all, 1, "racing callers must not create two aggregates for one fingerprint")
	assert.Equal(t, goroutines, all[0].ObservationCount())
}

func TestSingleValuedFields(t *testing.T) {
	repo := newAppRepo(t, WithSingleValuedFields("hosting"))
	ctx := context.Background()

	in := input("Salesforce", models.EntityTarget)
	in.SourceType = models.SourceLLMAssumption
	in.Payload = map[string]any{"hosting": []string{"on-prem"}}
	_, err := repo.FindOrCreate(ctx, in)
	require.NoError(t, err)

	in = input("Salesforce", models.EntityTarget)
	in.SourceType = models.SourceManual
	in.Payload = map[string]any{"hosting": []string{"cloud"}}
	agg, err := repo.FindOrCreate(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, []string{"cloud"}, agg.MergedFields["hosting"])
}
