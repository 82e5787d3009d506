package metrics

import "iter"

// Visit is a node paired with its depth below the root (root depth 0).
type Visit struct {
	Node  *Node
	Depth int
}

// Walk yields every node of the tree rooted at root with its depth, in
// depth-first pre-order. Children are visited in source order.
func Walk(root *Node) iter.Seq2[*Node, int] {
	return func(yield func(*Node, int) bool) {
		if root == nil {
			return
		}
		stack := []Visit{{Node: root}}
		for len(stack) > 0 {
			v := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !yield(v.Node, v.Depth) {
				return
			}
			for i := len(v.Node.Children) - 1; i >= 0; i-- {
				stack = append(stack, Visit{Node: v.Node.Children[i], Depth: v.Depth + 1})
			}
		}
	}
}

// Collect materializes Walk once so several analyzers can share it.
func Collect(root *Node) []Visit {
	var visits []Visit
	for n, depth := range Walk(root) {
		visits = append(visits, Visit{Node: n, Depth: depth})
	}
	return visits
}

// MaxDepth returns the largest depth among visits, 0 for a childless root.
func MaxDepth(visits []Visit) int {
	depth := 0
	for _, v := range visits {
		depth = max(depth, v.Depth)
	}
	return depth
}
