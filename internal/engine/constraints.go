package engine

import (
	"fmt"

	"github.com/algolens/algolens/internal/model"
)

// evaluateConstraints checks every configured constraint against the
// just-extended path. i is the index of the newest element; candidates after
// it are the only way the path can still grow.
func (s *SubsetSearch) evaluateConstraints(i int) []model.Constraint {
	var evals []model.Constraint
	if s.params.MinLength > 0 {
		evals = append(evals, s.checkMinLength(i))
	}
	if s.params.MaxLength > 0 {
		evals = append(evals, s.checkMaxLength())
	}
	if s.params.TargetSum != nil {
		evals = append(evals, s.checkTargetSum())
	}
	return evals
}

func anyViolated(evals []model.Constraint) bool {
	for _, c := range evals {
		if c.IsViolated {
			return true
		}
	}
	return false
}

// checkMinLength is violated only when the path can no longer reach the
// minimum even by taking every remaining candidate. A path that is merely
// still short is not violated; it can keep growing.
func (s *SubsetSearch) checkMinLength(i int) model.Constraint {
	remaining := len(s.nums) - i - 1
	reachable := len(s.path) + remaining
	if reachable < s.params.MinLength {
		return violated(model.ConstraintMinLength,
			fmt.Sprintf("path of length %d cannot reach minimum length %d", len(s.path), s.params.MinLength))
	}
	return passed(model.ConstraintMinLength,
		fmt.Sprintf("path length %d, minimum %d still reachable", len(s.path), s.params.MinLength))
}

func (s *SubsetSearch) checkMaxLength() model.Constraint {
	if len(s.path) > s.params.MaxLength {
		return violated(model.ConstraintMaxLength,
			fmt.Sprintf("path length %d exceeds maximum %d", len(s.path), s.params.MaxLength))
	}
	return passed(model.ConstraintMaxLength,
		fmt.Sprintf("path length %d within maximum %d", len(s.path), s.params.MaxLength))
}

// checkTargetSum prunes overshooting paths only when every input is
// non-negative; with negative inputs a later candidate can bring the sum
// back down, so overshoot is not a dead end.
func (s *SubsetSearch) checkTargetSum() model.Constraint {
	target := *s.params.TargetSum
	if s.allNonNegative && s.sum > target {
		return violated(model.ConstraintTargetSum,
			fmt.Sprintf("sum %d exceeds target %d", s.sum, target))
	}
	return passed(model.ConstraintTargetSum,
		fmt.Sprintf("sum %d, target %d", s.sum, target))
}

func violated(typ, description string) model.Constraint {
	return model.Constraint{
		Type:        typ,
		Description: description,
		IsViolated:  true,
		Severity:    model.SeverityBlocking,
	}
}

func passed(typ, description string) model.Constraint {
	return model.Constraint{
		Type:        typ,
		Description: description,
		IsViolated:  false,
		Severity:    model.SeverityInfo,
	}
}
