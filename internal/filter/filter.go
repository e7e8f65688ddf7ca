// Package filter denoises raw pulse widths before decoding.
package filter

import (
	"fmt"

	"github.com/sweeney/rclights/internal/pulse"
)

// Filter consumes one raw sample per cycle and returns the current output.
// Implementations are stateful and not safe for concurrent use.
type Filter interface {
	Filter(raw pulse.Width) pulse.Width
}

// Strategy names accepted by New.
const (
	StrategyConsensus = "consensus"
	StrategyAverage   = "average"
	StrategyChain     = "chain"
)

// Default window sizes.
const (
	DefaultAverageSamples   = 5
	DefaultConsensusSamples = 4
)

// New builds the named strategy. Chain feeds the moving average into
// consensus.
func New(strategy string, averageSamples, consensusSamples int) (Filter, error) {
	switch strategy {
	case StrategyConsensus:
		return NewConsensus(consensusSamples), nil
	case StrategyAverage:
		return NewAverage(averageSamples), nil
	case StrategyChain:
		return Chain{NewAverage(averageSamples), NewConsensus(consensusSamples)}, nil
	default:
		return nil, fmt.Errorf("filter: unknown strategy %q", strategy)
	}
}

// Chain applies filters in order, each consuming the previous output.
type Chain []Filter

// Filter runs raw through every stage.
func (c Chain) Filter(raw pulse.Width) pulse.Width {
	w := raw
	for _, f := range c {
		w = f.Filter(w)
	}
	return w
}
