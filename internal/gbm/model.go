package gbm

import (
	"math"
	"strings"

	"github.com/cockroachdb/errors"
)

// ImportanceType selects how feature importances are computed
type ImportanceType string

const (
	// ImportanceGain sums the loss reduction of every split on a feature
	ImportanceGain ImportanceType = "gain"
	// ImportanceSplit counts how many splits use a feature
	ImportanceSplit ImportanceType = "split"
)

// MissingType controls how a split routes missing values
type MissingType int

const (
	MissingNone MissingType = iota
	MissingZero
	MissingNaN
)

// zeroThreshold matches the tolerance used when the model was trained
const zeroThreshold = 1e-35

// Node is an internal split. A negative child addresses leaf ^child.
type Node struct {
	SplitFeature int
	Threshold    float64
	Gain         float64
	DefaultLeft  bool
	Missing      MissingType
	Left         int
	Right        int

	// Strict splits send x left only when float32(x) < float32(Threshold)
	Strict bool
}

// Tree is one regression tree of the ensemble
type Tree struct {
	Index      int
	NumLeaves  int
	Shrinkage  float64
	Nodes      []Node
	LeafValues []float64
}

// Model is a read-only gradient-boosted tree ensemble
type Model struct {
	Version       string
	Objective     string
	FeatureNames  []string
	Trees         []Tree
	AverageOutput bool

	// BaseScore is added to the raw sum of tree outputs before the transform
	BaseScore float64

	numFeatures int
}

// NumFeatures returns the number of inputs the model was trained on
func (m *Model) NumFeatures() int {
	return m.numFeatures
}

// Predict evaluates the ensemble on one feature vector
func (m *Model) Predict(features []float64) (float64, error) {
	if len(features) != m.numFeatures {
		return 0, &DimensionError{Expected: m.numFeatures, Got: len(features)}
	}

	raw := m.BaseScore
	for i := range m.Trees {
		raw += m.Trees[i].predict(features)
	}
	if m.AverageOutput && len(m.Trees) > 0 {
		raw /= float64(len(m.Trees))
	}

	return m.transform(raw), nil
}

func (m *Model) transform(raw float64) float64 {
	switch objectiveName(m.Objective) {
	case "poisson", "gamma", "tweedie", "count:poisson", "reg:gamma", "reg:tweedie":
		return math.Exp(raw)
	default:
		return raw
	}
}

// FeatureImportances returns one weight per feature, normalised to sum to 1.
// A model without splits yields all zeros.
func (m *Model) FeatureImportances(kind ImportanceType) ([]float64, error) {
	weights := make([]float64, m.numFeatures)

	for _, tree := range m.Trees {
		for _, node := range tree.Nodes {
			switch kind {
			case ImportanceSplit:
				weights[node.SplitFeature]++
			case ImportanceGain:
				weights[node.SplitFeature] += node.Gain
			default:
				return nil, errors.Newf("unknown importance type %q", kind)
			}
		}
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total > 0 {
		for i := range weights {
			weights[i] /= total
		}
	}
	return weights, nil
}

func (t *Tree) predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return t.LeafValues[0]
	}

	idx := 0
	for {
		n := &t.Nodes[idx]
		next := n.Right
		if n.goesLeft(x[n.SplitFeature]) {
			next = n.Left
		}
		if next < 0 {
			return t.LeafValues[^next]
		}
		idx = next
	}
}

func (n *Node) goesLeft(v float64) bool {
	if math.IsNaN(v) && n.Missing != MissingNaN {
		v = 0
	}
	if (n.Missing == MissingZero && math.Abs(v) <= zeroThreshold) ||
		(n.Missing == MissingNaN && math.IsNaN(v)) {
		return n.DefaultLeft
	}
	if n.Strict {
		return float32(v) < float32(n.Threshold)
	}
	return v <= n.Threshold
}

func objectiveName(objective string) string {
	fields := strings.Fields(objective)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// checkObjective rejects objectives that do not produce a single regression output
func checkObjective(objective string) error {
	switch objectiveName(objective) {
	case "", "regression", "regression_l1", "regression_l2", "l1", "l2", "mse", "mae",
		"huber", "fair", "quantile", "mape", "poisson", "gamma", "tweedie":
		return nil
	default:
		return unsupported("objective %q is not a regression objective", objective)
	}
}

// validate checks structural invariants that Predict relies on
func (m *Model) validate() error {
	if len(m.Trees) == 0 {
		return ErrEmptyModel
	}
	if m.numFeatures <= 0 {
		return malformed("model declares %d features", m.numFeatures)
	}
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != m.numFeatures {
		return malformed("model lists %d feature names for %d features", len(m.FeatureNames), m.numFeatures)
	}

	for _, tree := range m.Trees {
		if len(tree.LeafValues) == 0 {
			return malformed("tree %d has no leaves", tree.Index)
		}
		if len(tree.Nodes) != len(tree.LeafValues)-1 {
			return malformed("tree %d has %d splits for %d leaves", tree.Index, len(tree.Nodes), len(tree.LeafValues))
		}
		for i, node := range tree.Nodes {
			if node.SplitFeature < 0 || node.SplitFeature >= m.numFeatures {
				return malformed("tree %d node %d splits on feature %d", tree.Index, i, node.SplitFeature)
			}
			for _, child := range []int{node.Left, node.Right} {
				if child < 0 {
					if ^child >= len(tree.LeafValues) {
						return malformed("tree %d node %d references leaf %d", tree.Index, i, ^child)
					}
					continue
				}
				// children always follow their parent, so traversal terminates
				if child <= i || child >= len(tree.Nodes) {
					return malformed("tree %d node %d references node %d", tree.Index, i, child)
				}
			}
		}
	}
	return nil
}
