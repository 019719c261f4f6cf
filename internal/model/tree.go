package model

// A Node is a splitting decision of the form "x[FeatureIndex] < Threshold"
// in a decision tree. Trees are stored as a flat node list with leaves
// indexing into a separate output array, which keeps the serialized
// artifact compact and evaluation allocation-free.
type Node struct {
	FeatureIndex int     `json:"feature_index"`
	Threshold    float64 `json:"threshold"`
	LeftChild    int     `json:"left_child"`
	LeftIsLeaf   bool    `json:"left_is_leaf"`
	RightChild   int     `json:"right_child"`
	RightIsLeaf  bool    `json:"right_is_leaf"`
}

// A DecisionTree maps a feature vector to the regression output of the
// bin it falls into.
type DecisionTree struct {
	Nodes       []Node    `json:"nodes"`
	Outputs     []float64 `json:"outputs"`
	FeatureSize int       `json:"feature_size"`
	Depth       int       `json:"depth"`
}

// Bin drops a feature vector down the tree and returns the index of the
// bin it ends up in. A tree with no internal nodes has a single bin.
func (t *DecisionTree) Bin(x []float64) int {
	if len(t.Nodes) == 0 {
		return 0
	}
	cur := t.Nodes[0]
	for i := 0; i <= t.Depth; i++ {
		if x[cur.FeatureIndex] < cur.Threshold {
			if cur.LeftIsLeaf {
				return cur.LeftChild
			}
			cur = t.Nodes[cur.LeftChild]
		} else {
			if cur.RightIsLeaf {
				return cur.RightChild
			}
			cur = t.Nodes[cur.RightChild]
		}
	}
	return 0
}

// Evaluate returns the output associated with the bin x ends up in.
func (t *DecisionTree) Evaluate(x []float64) float64 {
	return t.Outputs[t.Bin(x)]
}

// buildNode is the recursive form used during fitting; Flatten converts
// it into the flat representation above.
type buildNode struct {
	feature   int
	threshold float64
	left      *buildNode
	right     *buildNode
	leaf      bool
	value     float64
}

func flatten(root *buildNode, featureSize int) DecisionTree {
	t := DecisionTree{FeatureSize: featureSize}
	if root == nil {
		t.Outputs = []float64{0}
		return t
	}
	if root.leaf {
		t.Outputs = []float64{root.value}
		return t
	}

	// Assign internal node slots in DFS order so child indices are known
	// when the parent is written back.
	var walk func(n *buildNode, depth int) (idx int, isLeaf bool)
	walk = func(n *buildNode, depth int) (int, bool) {
		if n.leaf {
			t.Outputs = append(t.Outputs, n.value)
			return len(t.Outputs) - 1, true
		}
		if depth > t.Depth {
			t.Depth = depth
		}
		idx := len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{FeatureIndex: n.feature, Threshold: n.threshold})
		li, ll := walk(n.left, depth+1)
		ri, rl := walk(n.right, depth+1)
		t.Nodes[idx].LeftChild = li
		t.Nodes[idx].LeftIsLeaf = ll
		t.Nodes[idx].RightChild = ri
		t.Nodes[idx].RightIsLeaf = rl
		return idx, false
	}
	_, _ = walk(root, 0)
	return t
}
