package metrics

// IsDecisionPoint reports whether nodes of kind k introduce a branch.
func IsDecisionPoint(k Kind) bool {
	switch k {
	case KindConditional, KindLoop, KindTry, KindWith, KindBoolOp, KindIfExp:
		return true
	}
	return false
}

// Complexity computes McCabe's cyclomatic complexity at file granularity:
// 1 + the number of decision points + (operands - 1) for every boolean
// combination. The result is always at least 1.
func Complexity(visits []Visit) int {
	complexity := 1
	for _, v := range visits {
		if !IsDecisionPoint(v.Node.Kind) {
			continue
		}
		complexity++
		if v.Node.Kind == KindBoolOp && v.Node.Operands > 1 {
			complexity += v.Node.Operands - 1
		}
	}
	return complexity
}
