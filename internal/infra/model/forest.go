package model

import (
	"errors"
	"fmt"
)

var ErrInvalidArtifact = errors.New("model: invalid artifact")

// Tree mirrors the node arrays of a fitted scikit-learn regression tree.
type Tree struct {
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	Value         []float64 `json:"value"`
}

const leaf = -1

// Forest is a random forest regressor; its prediction is the mean over trees.
type Forest struct {
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

func (f *Forest) Validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("%w: forest n_features must be positive", ErrInvalidArtifact)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NFeatures); err != nil {
			return fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
	}
	return nil
}

func (t *Tree) validate(nFeatures int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			if r != leaf {
				return fmt.Errorf("node %d has a single child", i)
			}
			continue
		}
		// children are stored after their parent, which also rules out cycles
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has out-of-range children", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return fmt.Errorf("node %d splits on unknown feature %d", i, t.Feature[i])
		}
	}
	return nil
}

func (t *Tree) predict(row []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		// scikit-learn compares float32 inputs against its thresholds
		v := float64(float32(row[t.Feature[node]]))
		if v <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// Predict averages the tree outputs for a single feature row.
func (f *Forest) Predict(row []float64) (float64, error) {
	if len(row) != f.NFeatures {
		return 0, fmt.Errorf("model: row has %d features, forest expects %d", len(row), f.NFeatures)
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].predict(row)
	}
	return sum / float64(len(f.Trees)), nil
}
