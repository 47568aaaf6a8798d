package engine

import "github.com/algolens/algolens/internal/model"

// BuildDecisionTree reconstructs the explored search tree from a step
// sequence. Choice steps open nodes, pruning and backtrack steps close them,
// solution steps mark the node whose path produced a result. The root stands
// for the empty path. A truncated (cancelled) sequence yields a partial tree
// with its deepest nodes left open.
func BuildDecisionTree(steps []model.ExecutionStep) *model.DecisionTreeNode {
	root := &model.DecisionTreeNode{ID: 0, Depth: 0}
	stack := []*model.DecisionTreeNode{root}
	nextID := 1

	for _, step := range steps {
		current := stack[len(stack)-1]
		switch step.Type {
		case model.StepChoice:
			if step.ChoiceMade == nil {
				continue
			}
			value := *step.ChoiceMade
			node := &model.DecisionTreeNode{
				ID:             nextID,
				Value:          &value,
				Depth:          step.Depth + 1,
				Parent:         current,
				ExecutionOrder: step.ID,
			}
			nextID++
			current.Children = append(current.Children, node)
			stack = append(stack, node)
		case model.StepPruning, model.StepBacktrack:
			if len(stack) > 1 {
				current.IsBacktracked = true
				stack = stack[:len(stack)-1]
			}
		case model.StepSolution:
			current.IsSolution = true
		}
	}

	markLeaves(root)
	return root
}

func markLeaves(n *model.DecisionTreeNode) {
	if len(n.Children) == 0 {
		n.IsLeaf = true
		return
	}
	for _, child := range n.Children {
		markLeaves(child)
	}
}
