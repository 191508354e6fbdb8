package grid

import (
	"fmt"
	"sort"

	boterrors "gridbot/internal/errors"
)

// BuildParams describes one grid generation.
type BuildParams struct {
	Center          float64
	RangePct        float64
	SpacingPct      float64
	Count           int
	Capital         float64
	CapitalFraction float64
	Generation      uint64
}

// BuildLevels derives the grid ladder around the center price: buy
// levels below at center*(1-k*spacing), sell levels above at
// center*(1+k*spacing). An odd count puts the extra level on the buy
// side, biasing the grid toward accumulating on dips. The result is
// sorted ascending by price and every level starts EMPTY.
func BuildLevels(p BuildParams) ([]*Level, error) {
	if err := validateBuildParams(p); err != nil {
		return nil, err
	}

	buys := p.Count/2 + p.Count%2
	sells := p.Count / 2

	perLevelCapital := p.Capital * p.CapitalFraction / float64(p.Count)

	levels := make([]*Level, 0, p.Count)
	for k := 1; k <= buys; k++ {
		price := p.Center * (1 - float64(k)*p.SpacingPct)
		levels = append(levels, &Level{
			Generation: p.Generation,
			Side:       SideBuy,
			Price:      price,
			Qty:        perLevelCapital / price,
			State:      StateEmpty,
		})
	}
	for k := 1; k <= sells; k++ {
		price := p.Center * (1 + float64(k)*p.SpacingPct)
		levels = append(levels, &Level{
			Generation: p.Generation,
			Side:       SideSell,
			Price:      price,
			Qty:        perLevelCapital / price,
			State:      StateEmpty,
		})
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	for i, lvl := range levels {
		lvl.Index = i
	}
	return levels, nil
}

func validateBuildParams(p BuildParams) error {
	if p.Center <= 0 {
		return fmt.Errorf("%w: center price must be positive, got %v",
			boterrors.ErrInvalidConfiguration, p.Center)
	}
	if p.Count < 2 {
		return fmt.Errorf("%w: grid count must be at least 2, got %d",
			boterrors.ErrInvalidConfiguration, p.Count)
	}
	if p.SpacingPct <= 0 {
		return fmt.Errorf("%w: spacing must be positive, got %v",
			boterrors.ErrInvalidConfiguration, p.SpacingPct)
	}
	if p.RangePct <= 0 {
		return fmt.Errorf("%w: range must be positive, got %v",
			boterrors.ErrInvalidConfiguration, p.RangePct)
	}
	if p.Capital <= 0 {
		return fmt.Errorf("%w: capital must be positive, got %v",
			boterrors.ErrInvalidConfiguration, p.Capital)
	}
	if p.CapitalFraction <= 0 || p.CapitalFraction > 1 {
		return fmt.Errorf("%w: capital fraction must be in (0, 1], got %v",
			boterrors.ErrInvalidConfiguration, p.CapitalFraction)
	}
	half := p.Count/2 + p.Count%2
	if p.SpacingPct*float64(half) > p.RangePct {
		return fmt.Errorf("%w: spacing %v x %d levels per side exceeds range %v",
			boterrors.ErrInvalidConfiguration, p.SpacingPct, half, p.RangePct)
	}
	return nil
}
