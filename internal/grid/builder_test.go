package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "gridbot/internal/errors"
)

func validParams() BuildParams {
	return BuildParams{
		Center:          100.0,
		RangePct:        0.10,
		SpacingPct:      0.005,
		Count:           10,
		Capital:         1000.0,
		CapitalFraction: 0.5,
		Generation:      1,
	}
}

// TestBuildLevels_PricesAscending verifies the ladder is sorted by price
// with indexes following the sort order.
func TestBuildLevels_PricesAscending(t *testing.T) {
	levels, err := BuildLevels(validParams())
	require.NoError(t, err)
	require.Len(t, levels, 10)

	for i := 1; i < len(levels); i++ {
		assert.Greater(t, levels[i].Price, levels[i-1].Price)
		assert.Equal(t, i, levels[i].Index)
	}
	assert.Equal(t, 0, levels[0].Index)
}

// TestBuildLevels_SidesAroundCenter verifies buys sit below the center
// and sells above, at multiples of the spacing.
func TestBuildLevels_SidesAroundCenter(t *testing.T) {
	p := validParams()
	levels, err := BuildLevels(p)
	require.NoError(t, err)

	for _, lvl := range levels {
		if lvl.Side == SideBuy {
			assert.Less(t, lvl.Price, p.Center)
		} else {
			assert.Greater(t, lvl.Price, p.Center)
		}
		assert.Equal(t, StateEmpty, lvl.State)
		assert.Equal(t, uint64(1), lvl.Generation)
	}

	// Nearest buy and sell are exactly one spacing step away.
	assert.InDelta(t, p.Center*(1-p.SpacingPct), levels[4].Price, 1e-9)
	assert.InDelta(t, p.Center*(1+p.SpacingPct), levels[5].Price, 1e-9)
}

// TestBuildLevels_OddCountFavorsBuys verifies the extra level of an odd
// count lands on the buy side.
func TestBuildLevels_OddCountFavorsBuys(t *testing.T) {
	p := validParams()
	p.Count = 7
	levels, err := BuildLevels(p)
	require.NoError(t, err)
	require.Len(t, levels, 7)

	buys, sells := 0, 0
	for _, lvl := range levels {
		if lvl.Side == SideBuy {
			buys++
		} else {
			sells++
		}
	}
	assert.Equal(t, 4, buys)
	assert.Equal(t, 3, sells)
}

// TestBuildLevels_QuantityFromCapitalSplit verifies each level gets an
// equal slice of the deployed capital, converted at its own price.
func TestBuildLevels_QuantityFromCapitalSplit(t *testing.T) {
	p := validParams()
	levels, err := BuildLevels(p)
	require.NoError(t, err)

	perLevel := p.Capital * p.CapitalFraction / float64(p.Count)
	for _, lvl := range levels {
		assert.InDelta(t, perLevel, lvl.Price*lvl.Qty, 1e-9)
	}
}

// TestBuildLevels_Validation covers the rejected parameter combinations.
func TestBuildLevels_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*BuildParams)
	}{
		{"zero center", func(p *BuildParams) { p.Center = 0 }},
		{"negative center", func(p *BuildParams) { p.Center = -10 }},
		{"count too small", func(p *BuildParams) { p.Count = 1 }},
		{"zero spacing", func(p *BuildParams) { p.SpacingPct = 0 }},
		{"zero range", func(p *BuildParams) { p.RangePct = 0 }},
		{"zero capital", func(p *BuildParams) { p.Capital = 0 }},
		{"fraction above one", func(p *BuildParams) { p.CapitalFraction = 1.5 }},
		{"grid wider than range", func(p *BuildParams) { p.SpacingPct = 0.03 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			levels, err := BuildLevels(p)
			assert.Nil(t, levels)
			assert.True(t, errors.Is(err, boterrors.ErrInvalidConfiguration), "expected configuration error, got %v", err)
		})
	}
}

// TestBuildLevels_SpacingExactlyFitsRange verifies the boundary case
// where the outermost level lands exactly on the range edge.
func TestBuildLevels_SpacingExactlyFitsRange(t *testing.T) {
	p := validParams()
	p.Count = 10
	p.SpacingPct = 0.02 // 5 levels per side x 0.02 == 0.10 range
	levels, err := BuildLevels(p)
	require.NoError(t, err)

	lowest := levels[0].Price
	assert.InDelta(t, p.Center*(1-p.RangePct), lowest, math.Abs(lowest)*1e-9)
}
