package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Comparison is the test applied at a split node.
type Comparison int

const (
	// AtLeast passes when value >= threshold.
	AtLeast Comparison = iota + 1
	// Below passes when value < threshold.
	Below
)

func (c Comparison) holds(value, threshold float64) bool {
	switch c {
	case AtLeast:
		return value >= threshold
	case Below:
		return value < threshold
	default:
		return false
	}
}

func (c Comparison) String() string {
	switch c {
	case AtLeast:
		return ">="
	case Below:
		return "<"
	default:
		return "?"
	}
}

// Node is either a leaf carrying a Label or a split that compares one
// covariate against a threshold and descends into Pass or Fail.
type Node struct {
	Label     Regime
	Covariate Covariate
	Op        Comparison
	Threshold float64
	Pass      *Node
	Fail      *Node
}

// Leaf returns a terminal node.
func Leaf(r Regime) *Node { return &Node{Label: r} }

// Split returns a node testing c against threshold.
func Split(c Covariate, op Comparison, threshold float64, pass, fail *Node) *Node {
	return &Node{Covariate: c, Op: op, Threshold: threshold, Pass: pass, Fail: fail}
}

// IsLeaf reports whether n is terminal.
func (n *Node) IsLeaf() bool { return n.Pass == nil && n.Fail == nil }

// SampleFunc supplies the sample for a covariate on demand. A tree walk
// calls it only for covariates on the branch being taken.
type SampleFunc func(ctx context.Context, c Covariate) (Sample, error)

// Tree is an immutable regime decision tree. It is safe for concurrent use.
type Tree struct {
	name       string
	root       *Node
	covariates []Covariate
}

// NewTree validates root and returns a Tree.
func NewTree(name string, root *Node) (*Tree, error) {
	if root == nil {
		return nil, errors.New("decision tree has no root")
	}
	t := &Tree{name: name, root: root}
	seen := make(map[Covariate]bool)
	if err := t.collect(root, seen); err != nil {
		return nil, fmt.Errorf("decision tree %q: %w", name, err)
	}
	return t, nil
}

func (t *Tree) collect(n *Node, seen map[Covariate]bool) error {
	if n.IsLeaf() {
		if !n.Label.Valid() {
			return fmt.Errorf("leaf has unknown label %q", n.Label)
		}
		return nil
	}
	if n.Pass == nil || n.Fail == nil {
		return fmt.Errorf("split on %s is missing a branch", n.Covariate)
	}
	if n.Covariate == "" {
		return errors.New("split has no covariate")
	}
	if n.Op != AtLeast && n.Op != Below {
		return fmt.Errorf("split on %s has invalid comparison", n.Covariate)
	}
	if math.IsNaN(n.Threshold) {
		return fmt.Errorf("split on %s has NaN threshold", n.Covariate)
	}
	if !seen[n.Covariate] {
		seen[n.Covariate] = true
		t.covariates = append(t.covariates, n.Covariate)
	}
	if err := t.collect(n.Pass, seen); err != nil {
		return err
	}
	return t.collect(n.Fail, seen)
}

// Name returns the variant name.
func (t *Tree) Name() string { return t.name }

// Covariates lists every covariate the tree can consult, in the order a
// depth-first walk first meets them.
func (t *Tree) Covariates() []Covariate {
	out := make([]Covariate, len(t.covariates))
	copy(out, t.covariates)
	return out
}

// Evaluate walks the tree, pulling samples through fetch only when a split
// needs them. A no-data sample fails with *SampleUnavailableError.
func (t *Tree) Evaluate(ctx context.Context, fetch SampleFunc) (Regime, error) {
	n := t.root
	for !n.IsLeaf() {
		s, err := fetch(ctx, n.Covariate)
		if err != nil {
			return "", err
		}
		if s.NoData || math.IsNaN(s.Value) {
			return "", &SampleUnavailableError{Covariate: n.Covariate, Point: s.Point}
		}
		if n.Op.holds(s.Value, n.Threshold) {
			n = n.Pass
		} else {
			n = n.Fail
		}
	}
	return n.Label, nil
}

// Classify evaluates the tree over a precomputed bundle. It has no side
// effects. A covariate on the path that is absent from the bundle yields
// *UnreachableCovariateError.
func (t *Tree) Classify(b Bundle) (Regime, error) {
	return t.Evaluate(context.Background(), func(_ context.Context, c Covariate) (Sample, error) {
		s, ok := b.Samples[c]
		if !ok {
			return Sample{}, &UnreachableCovariateError{Covariate: c}
		}
		s.Point = b.Point
		return s, nil
	})
}

// Thresholds of the standard five-covariate tree.
const (
	MarchPrecipRainThreshold   = 261.7 // mm
	ElevationRainThreshold     = 618.0 // m
	MarchPrecipSnowThreshold   = 185.6 // mm
	JanTempThreshold           = -5.0  // degC
	AprilTempThreshold         = 6.26  // degC
	MinWinterTempUltraSnowmelt = -7.7  // degC
)

// StandardTreeName is the only supported variant.
const StandardTreeName = "standard"

// SnowDepthTreeName is the historical six-covariate variant. Its snow depth
// split was never finished and it cannot be selected.
const SnowDepthTreeName = "snow-depth"

// StandardTree returns the five-covariate regime tree.
func StandardTree() *Tree {
	root := Split(CovariateMarchPrecip, AtLeast, MarchPrecipRainThreshold,
		Split(CovariateElevation, Below, ElevationRainThreshold,
			Leaf(RegimeRainfall),
			Leaf(RegimeRainSnow),
		),
		Split(CovariateMarchPrecip, Below, MarchPrecipSnowThreshold,
			Split(CovariateJanTemp, AtLeast, JanTempThreshold,
				Split(CovariateAprilTemp, Below, AprilTempThreshold,
					Leaf(RegimeGroundwater),
					Leaf(RegimeSnowRain),
				),
				Split(CovariateMinWinterTemp, Below, MinWinterTempUltraSnowmelt,
					Leaf(RegimeUltraSnowmelt),
					Leaf(RegimeSnowmelt),
				),
			),
			Leaf(RegimeSnowAndRain),
		),
	)
	t, err := NewTree(StandardTreeName, root)
	if err != nil {
		panic(err)
	}
	return t
}

// LookupTree resolves a configured variant name.
func LookupTree(name string) (*Tree, error) {
	switch name {
	case "", StandardTreeName:
		return StandardTree(), nil
	case SnowDepthTreeName:
		return nil, fmt.Errorf("%w: %q has no established snow depth threshold", ErrUnsupportedTree, name)
	default:
		return nil, fmt.Errorf("%w: unknown variant %q", ErrUnsupportedTree, name)
	}
}
