package model

// DecisionTreeNode is one explored node of a search tree, reconstructed from
// a step sequence. It is a derived view: the step sequence stays the source
// of truth. Parent is a back-reference only; Children own their subtrees in
// exploration order.
type DecisionTreeNode struct {
	ID             int                 `json:"id"`
	Value          *int                `json:"value,omitempty"`
	Depth          int                 `json:"depth"`
	Parent         *DecisionTreeNode   `json:"-"`
	Children       []*DecisionTreeNode `json:"children,omitempty"`
	IsLeaf         bool                `json:"isLeaf"`
	IsSolution     bool                `json:"isSolution"`
	IsBacktracked  bool                `json:"isBacktracked"`
	ExecutionOrder int                 `json:"executionOrder"`
}
