package domain

import "fmt"

// Break is a nested sub-group breakdown: one child node per instance, each
// optionally broken down again by ChildBreak.
type Break struct {
	Name string `yaml:"name" json:"name" validate:"required"`

	// Field holds the answer a response is broken down by.
	Field Field `yaml:"field" json:"field"`

	// Instances are the answer values, one child node each, in order.
	Instances []int `yaml:"instances" json:"instances" validate:"min=1"`

	ChildBreak *Break `yaml:"child_break,omitempty" json:"child_break,omitempty"`
}

func (b *Break) childBreaks() []Break {
	if b.ChildBreak == nil {
		return nil
	}
	return []Break{*b.ChildBreak}
}

// BreakIndexer resolves which instances of a break the current record
// falls into, as indexes into Break.Instances.
type BreakIndexer interface {
	InstanceIndexes(b *Break) []int
}

// ResponseBreakIndexer indexes a response by its answer to each break's
// field at the given entity values.
type ResponseBreakIndexer struct {
	Response *Response
	Entities EntityValueCombination
}

// InstanceIndexes implements BreakIndexer.
func (ri ResponseBreakIndexer) InstanceIndexes(b *Break) []int {
	v, ok := ri.Response.Answer(b.Field, ri.Entities)
	if !ok {
		return nil
	}
	var idx []int
	for i, inst := range b.Instances {
		if inst == v {
			idx = append(idx, i)
		}
	}
	return idx
}

// ResultSampleSizePair is a node in a nested-break result tree. A single
// accumulator is not safe for concurrent use; accumulate per worker and
// combine with AddPairs.
type ResultSampleSizePair struct {
	Result     float64 `json:"result"`
	SampleSize uint32  `json:"sample_size"`

	// Variance accumulates squared deviations from a supplied weighted
	// mean. PopulationVariance finalises it.
	Variance float64 `json:"variance"`

	ChildResults []ResultSampleSizePair `json:"child_results,omitempty"`
}

// EmptyWithChildResults builds an all-zero child array shaped like breaks:
// one node per instance of each break, in break order, each seeded with
// its ChildBreak's shape. It returns nil when there are no breaks.
func EmptyWithChildResults(breaks []Break) []ResultSampleSizePair {
	if len(breaks) == 0 {
		return nil
	}
	n := 0
	for i := range breaks {
		n += len(breaks[i].Instances)
	}
	children := make([]ResultSampleSizePair, 0, n)
	for i := range breaks {
		for range breaks[i].Instances {
			children = append(children, ResultSampleSizePair{
				ChildResults: EmptyWithChildResults(breaks[i].childBreaks()),
			})
		}
	}
	return children
}

// NewResultTree returns a zero root node shaped for breaks.
func NewResultTree(breaks []Break) ResultSampleSizePair {
	return ResultSampleSizePair{ChildResults: EmptyWithChildResults(breaks)}
}

// Add counts one sample of value. When weightedMean is non-nil the squared
// deviation from it is accumulated into Variance.
func (p *ResultSampleSizePair) Add(value float64, weightedMean *float64) {
	p.SampleSize++
	p.Result += value
	if weightedMean != nil {
		d := value - *weightedMean
		p.Variance += d * d
	}
}

// AddToBreakResults adds value to this node and to every break instance
// the indexer places the current record in, recursing through child breaks.
func (p *ResultSampleSizePair) AddToBreakResults(breaks []Break, indexer BreakIndexer, value float64, weightedMean *float64) {
	p.Add(value, weightedMean)
	addToBreakChildren(p.ChildResults, breaks, indexer, value, weightedMean)
}

func addToBreakChildren(children []ResultSampleSizePair, breaks []Break, indexer BreakIndexer, value float64, weightedMean *float64) {
	offset := 0
	for i := range breaks {
		b := &breaks[i]
		for _, idx := range indexer.InstanceIndexes(b) {
			if idx < 0 || idx >= len(b.Instances) || offset+idx >= len(children) {
				continue
			}
			node := &children[offset+idx]
			node.Add(value, weightedMean)
			if b.ChildBreak != nil {
				addToBreakChildren(node.ChildResults, b.childBreaks(), indexer, value, weightedMean)
			}
		}
		offset += len(b.Instances)
	}
}

// PopulationVariance returns Variance divided by SampleSize, or zero for an
// empty node.
func (p ResultSampleSizePair) PopulationVariance() float64 {
	if p.SampleSize == 0 {
		return 0
	}
	return p.Variance / float64(p.SampleSize)
}

// AddPairs combines two same-shaped trees node by node.
//
// Child arrays are not deep-copied: where one side has no children the
// result shares the other side's array. Treat the result and both inputs
// as immutable afterwards.
func AddPairs(a, b ResultSampleSizePair) (ResultSampleSizePair, error) {
	children, err := combineChildren(a.ChildResults, b.ChildResults, AddPairs)
	if err != nil {
		return ResultSampleSizePair{}, err
	}
	return ResultSampleSizePair{
		Result:       a.Result + b.Result,
		SampleSize:   a.SampleSize + b.SampleSize,
		Variance:     a.Variance + b.Variance,
		ChildResults: children,
	}, nil
}

// SubtractPairs differences two same-shaped trees node by node, b from a.
// Sample sizes never go below zero. Child arrays follow the same sharing
// rules as AddPairs.
func SubtractPairs(a, b ResultSampleSizePair) (ResultSampleSizePair, error) {
	children, err := combineChildren(a.ChildResults, b.ChildResults, SubtractPairs)
	if err != nil {
		return ResultSampleSizePair{}, err
	}
	var sampleSize uint32
	if a.SampleSize > b.SampleSize {
		sampleSize = a.SampleSize - b.SampleSize
	}
	return ResultSampleSizePair{
		Result:       a.Result - b.Result,
		SampleSize:   sampleSize,
		Variance:     a.Variance - b.Variance,
		ChildResults: children,
	}, nil
}

func combineChildren(
	a, b []ResultSampleSizePair,
	combine func(a, b ResultSampleSizePair) (ResultSampleSizePair, error),
) ([]ResultSampleSizePair, error) {
	switch {
	case a == nil:
		return b, nil
	case b == nil:
		return a, nil
	case len(a) != len(b):
		return nil, fmt.Errorf("%w: %d children vs %d", ErrTreeShapeMismatch, len(a), len(b))
	}
	out := make([]ResultSampleSizePair, len(a))
	for i := range a {
		c, err := combine(a[i], b[i])
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}
