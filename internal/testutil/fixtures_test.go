package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roastery/internal/domain"
)

func TestCatalogFixture(t *testing.T) {
	cat := Catalog(t)

	for _, id := range []string{"yirg", "house", "four"} {
		r, err := cat.GetRecipe(id)
		require.NoError(t, err, id)
		assert.NoError(t, domain.ValidateRecipe(r, domain.DefaultRatioTolerance), id)
	}

	four, err := cat.GetRecipe("four")
	require.NoError(t, err)
	assert.Equal(t, domain.RecipeBlend, four.Kind())
	assert.True(t, D("0.13").Equal(four.Components[2].LossRate.Decimal))
}
