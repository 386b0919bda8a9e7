package fingerprint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealroom/internal/resolution/models"
	dErrors "dealroom/pkg/domain-errors"
)

func TestNew_Deterministic(t *testing.T) {
	first, err := New("salesforce", models.VendorAbsent(), models.EntityTarget, "app")
	require.NoError(t, err)

	// Idempotent across repeated calls.
	for range 10 {
		again, err := New("salesforce", models.VendorAbsent(), models.EntityTarget, "app")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Stable across processes: pin the exact value so a refactor that
	// changes the digest or the preimage layout fails loudly.
	assert.True(t, strings.HasPrefix(first.ID.String(), "app-TARGET-"))
	assert.Len(t, first.ID.String(), len("app-TARGET-")+8)
	assert.Equal(t, "salesforce|\x00vendor-absent\x00|target", first.Key)
}

func TestNew_IDShape(t *testing.T) {
	fp, err := New("office 365", models.NewVendor("Microsoft"), models.EntityBuyer, "app")
	require.NoError(t, err)

	parts := strings.SplitN(fp.ID.String(), "-", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "app", parts[0])
	assert.Equal(t, "BUYER", parts[1])
	assert.Len(t, parts[2], 8)
	assert.Equal(t, strings.ToLower(parts[2]), parts[2], "hash8 is lowercase hex")
}

func TestNew_DistinctIdentityInputsDiffer(t *testing.T) {
	base, err := New("sap", models.NewVendor("SAP"), models.EntityTarget, "app")
	require.NoError(t, err)

	// Different normalized name (the over-merge regression: "sap" vs
	// "sap successfactors" share a prefix and vendor).
	other, err := New("sap successfactors", models.NewVendor("SAP"), models.EntityTarget, "app")
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, other.ID)

	// Different entity.
	buyer, err := New("sap", models.NewVendor("SAP"), models.EntityBuyer, "app")
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, buyer.ID)

	// Different type prefix.
	infra, err := New("sap", models.NewVendor("SAP"), models.EntityTarget, "infra")
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, infra.ID)
}

func TestNew_AbsentVendorVsLiteralUnknown(t *testing.T) {
	absent, err := New("homegrown tool", models.VendorAbsent(), models.EntityTarget, "app")
	require.NoError(t, err)

	unknown, err := New("homegrown tool", models.NewVendor("unknown"), models.EntityTarget, "app")
	require.NoError(t, err)

	assert.NotEqual(t, absent.ID, unknown.ID)
	assert.NotEqual(t, absent.Key, unknown.Key)
}

func TestNew_VendorCasingDoesNotSplitIdentity(t *testing.T) {
	a, err := New("concur", models.NewVendor("SAP"), models.EntityTarget, "app")
	require.NoError(t, err)
	b, err := New("concur", models.NewVendor("sap "), models.EntityTarget, "app")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestNew_RejectsEmptyInputs(t *testing.T) {
	_, err := New("", models.VendorAbsent(), models.EntityTarget, "app")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = New("salesforce", models.VendorAbsent(), models.Entity("observer"), "app")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = New("salesforce", models.VendorAbsent(), models.EntityTarget, "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
