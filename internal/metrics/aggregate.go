package metrics

import "strconv"

// Structure holds the per-file structural counts.
type Structure struct {
	Functions     int
	Classes       int
	AvgParams     float64 // rounded to 2 decimals, 0 without functions
	AvgMethods    float64 // rounded to 2 decimals, 0 without classes
	Raises        int
	Excepts       int
	InternalCalls int
	ExternalCalls int
}

// Aggregate computes structural counts from the tree rooted at root and its
// walked nodes.
//
// A call is internal when its callee is a bare name matching a function
// defined at module scope in the same file; every other call is external.
// Matching is purely textual: shadowing and rebinding are ignored.
func Aggregate(root *Node, visits []Visit) Structure {
	var s Structure
	moduleFuncs := moduleFunctions(root)

	params, methods := 0, 0
	for _, v := range visits {
		n := v.Node
		switch n.Kind {
		case KindFunctionDef:
			s.Functions++
			params += len(n.Params)
		case KindClassDef:
			s.Classes++
			methods += countMethods(n)
		case KindRaise:
			s.Raises++
		case KindExceptHandler:
			s.Excepts++
		case KindCall:
			if n.Callee != "" && moduleFuncs[n.Callee] {
				s.InternalCalls++
			} else {
				s.ExternalCalls++
			}
		}
	}

	if s.Functions > 0 {
		s.AvgParams = round2(float64(params) / float64(s.Functions))
	}
	if s.Classes > 0 {
		s.AvgMethods = round2(float64(methods) / float64(s.Classes))
	}
	return s
}

// countMethods counts function definitions that are direct statements of a
// class body. Methods of nested classes and functions nested in methods are
// not counted.
func countMethods(class *Node) int {
	count := 0
	for _, stmt := range class.Body {
		if stmt.Kind == KindFunctionDef {
			count++
		}
	}
	return count
}

// moduleFunctions returns the names of functions defined at module scope,
// i.e. not enclosed by another function or class.
func moduleFunctions(root *Node) map[string]bool {
	names := make(map[string]bool)
	var visit func(*Node)
	visit = func(n *Node) {
		for _, child := range n.Children {
			switch child.Kind {
			case KindFunctionDef:
				names[child.Name] = true
			case KindClassDef:
			default:
				visit(child)
			}
		}
	}
	if root != nil {
		visit(root)
	}
	return names
}

// round2 rounds x to two decimals. Rounding works on the exact binary value
// of x and breaks exact ties to even, so 0.075 (stored just below) gives 0.07
// and 0.125 gives 0.12.
func round2(x float64) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 2, 64), 64)
	return v
}
