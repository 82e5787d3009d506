package metrics

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Kind is the closed set of syntax node kinds the metrics distinguish.
type Kind int

const (
	KindOther Kind = iota
	KindConditional
	KindLoop
	KindTry
	KindWith
	KindBoolOp
	KindIfExp
	KindFunctionDef
	KindClassDef
	KindCall
	KindRaise
	KindExceptHandler
	KindName
)

var kindNames = [...]string{
	KindOther:         "other",
	KindConditional:   "conditional",
	KindLoop:          "loop",
	KindTry:           "exception-try",
	KindWith:          "context-scope",
	KindBoolOp:        "boolean-combination",
	KindIfExp:         "conditional-expression",
	KindFunctionDef:   "function-definition",
	KindClassDef:      "class-definition",
	KindCall:          "call-expression",
	KindRaise:         "raise-statement",
	KindExceptHandler: "exception-handler",
	KindName:          "name-reference",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// tree-sitter-python node types mapped onto Kind; anything absent is KindOther.
var pythonKinds = map[string]Kind{
	"if_statement":           KindConditional,
	"elif_clause":            KindConditional,
	"for_statement":          KindLoop,
	"while_statement":        KindLoop,
	"try_statement":          KindTry,
	"with_statement":         KindWith,
	"boolean_operator":       KindBoolOp,
	"conditional_expression": KindIfExp,
	"function_definition":    KindFunctionDef,
	"class_definition":       KindClassDef,
	"call":                   KindCall,
	"raise_statement":        KindRaise,
	"except_clause":          KindExceptHandler,
	"except_group_clause":    KindExceptHandler,
	"identifier":             KindName,
}

// Node is a node of the abstract syntax tree built from a Python file.
// Kind-specific payload lives in the optional fields; the root is a
// KindOther node of Type "module".
type Node struct {
	Kind     Kind
	Type     string // tree-sitter node type, e.g. "assignment"
	Line     int    // 1-based
	Column   int    // 1-based
	Children []*Node

	// Name is the defined name for function and class definitions, and the
	// referenced name for name references.
	Name string
	// Params lists declared positional parameter names of a function definition.
	Params []string
	// Body holds the direct child statements of a class definition.
	Body []*Node
	// Operator is "and" or "or" for a boolean combination.
	Operator string
	// Operands is the number of combined operands of a boolean combination.
	Operands int
	// Callee is the bare name called by a call expression, empty when the
	// callee is an attribute access or any other expression.
	Callee string
}

var pythonLanguage = sitter.NewLanguage(python.Language())

// Parse builds the abstract syntax tree of a Python 3 source file. It returns
// a *SyntaxError when src does not parse.
func Parse(src []byte) (*Node, error) {
	tree, err := parseTree(src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, firstSyntaxError(root)
	}

	b := &builder{src: src}
	nodes := b.convert(root)
	if b.err != nil {
		return nil, b.err
	}
	if len(nodes) != 1 {
		return nil, &SyntaxError{Line: 1, Column: 1, Msg: "unexpected module structure"}
	}
	return nodes[0], nil
}

// parseTree runs the tree-sitter Python parser over src. The caller closes
// the returned tree.
func parseTree(src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(pythonLanguage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGrammar, err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, &SyntaxError{Line: 1, Column: 1, Msg: "parser produced no tree"}
	}
	return tree, nil
}

// firstSyntaxError locates the first error or missing node in pre-order.
func firstSyntaxError(root *sitter.Node) error {
	var found *SyntaxError
	walkTree(root, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		switch {
		case n.IsMissing():
			found = newSyntaxError(n, fmt.Sprintf("missing %q", n.Kind()))
			return false
		case n.IsError():
			found = newSyntaxError(n, "invalid syntax")
			return false
		}
		return n.HasError()
	})
	if found == nil {
		found = newSyntaxError(root, "invalid syntax")
	}
	return found
}

func newSyntaxError(n *sitter.Node, msg string) *SyntaxError {
	pos := n.StartPosition()
	return &SyntaxError{Line: int(pos.Row) + 1, Column: int(pos.Column) + 1, Msg: msg}
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
// Returning false from the visitor skips the node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		walkTree(node.Child(uint(i)), visitor)
	}
}

// builder converts a concrete tree-sitter tree into the abstract Node tree.
type builder struct {
	src []byte
	err error
}

// convert returns the abstract nodes for n. Grouping-only nodes are spliced,
// so the result can hold zero, one or several nodes.
func (b *builder) convert(n *sitter.Node) []*Node {
	if n == nil || b.err != nil {
		return nil
	}

	switch n.Kind() {
	case "comment", "line_continuation":
		return nil
	case "block", "parenthesized_expression":
		return b.children(n)
	case "print_statement":
		b.err = newSyntaxError(n, "Missing parentheses in call to 'print'")
		return nil
	case "exec_statement":
		b.err = newSyntaxError(n, "Missing parentheses in call to 'exec'")
		return nil
	case "decorated_definition":
		return b.decorated(n)
	case "boolean_operator":
		return []*Node{b.boolOp(n)}
	case "string", "concatenated_string":
		node := b.newNode(n)
		node.Children = b.interpolations(n)
		return []*Node{node}
	}

	node := b.newNode(n)
	switch node.Kind {
	case KindFunctionDef:
		node.Name = b.text(n.ChildByFieldName("name"))
		node.Params = positionalParams(n.ChildByFieldName("parameters"), b.src)
		node.Children = b.children(n)
	case KindClassDef:
		node.Name = b.text(n.ChildByFieldName("name"))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(uint(i))
			converted := b.convert(child)
			if child.Kind() == "block" {
				node.Body = converted
			}
			node.Children = append(node.Children, converted...)
		}
	case KindCall:
		if fn := unwrapParens(n.ChildByFieldName("function")); fn != nil && fn.Kind() == "identifier" {
			node.Callee = b.text(fn)
		}
		node.Children = b.children(n)
	case KindName:
		node.Name = b.text(n)
	default:
		node.Children = b.children(n)
	}
	return []*Node{node}
}

func (b *builder) newNode(n *sitter.Node) *Node {
	pos := n.StartPosition()
	return &Node{
		Kind:   pythonKinds[n.Kind()],
		Type:   n.Kind(),
		Line:   int(pos.Row) + 1,
		Column: int(pos.Column) + 1,
	}
}

func (b *builder) children(n *sitter.Node) []*Node {
	var out []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, b.convert(n.NamedChild(uint(i)))...)
	}
	return out
}

func (b *builder) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return nodeText(n, b.src)
}

// interpolations returns the replacement fields of a string literal. Quotes,
// literal content and escape sequences are lexical and have no nodes.
func (b *builder) interpolations(n *sitter.Node) []*Node {
	var out []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(uint(i))
		switch child.Kind() {
		case "interpolation":
			out = append(out, b.convert(child)...)
		case "string", "string_content":
			out = append(out, b.interpolations(child)...)
		}
	}
	return out
}

// decorated replaces a decorated_definition by its inner definition, with the
// decorators as the definition's leading children.
func (b *builder) decorated(n *sitter.Node) []*Node {
	def := n.ChildByFieldName("definition")
	converted := b.convert(def)
	if len(converted) != 1 {
		return converted
	}

	node := converted[0]
	var decorators []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(uint(i))
		if child.Kind() == "decorator" {
			decorators = append(decorators, b.convert(child)...)
		}
	}
	node.Children = append(decorators, node.Children...)
	return converted
}

// boolOp flattens an unparenthesized chain of the same boolean operator into
// a single node, so "a and b and c" has three operands.
func (b *builder) boolOp(n *sitter.Node) *Node {
	node := b.newNode(n)
	node.Operator = operatorOf(n)

	var operands []*sitter.Node
	var collect func(*sitter.Node)
	collect = func(m *sitter.Node) {
		for _, field := range []string{"left", "right"} {
			side := m.ChildByFieldName(field)
			if side == nil {
				continue
			}
			if side.Kind() == "boolean_operator" && operatorOf(side) == node.Operator {
				collect(side)
				continue
			}
			operands = append(operands, side)
		}
	}
	collect(n)

	node.Operands = len(operands)
	for _, operand := range operands {
		node.Children = append(node.Children, b.convert(operand)...)
	}
	return node
}

func operatorOf(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return op.Kind()
	}
	return ""
}

func unwrapParens(n *sitter.Node) *sitter.Node {
	for n != nil && n.Kind() == "parenthesized_expression" {
		var inner *sitter.Node
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if child := n.NamedChild(uint(i)); child.Kind() != "comment" {
				inner = child
				break
			}
		}
		n = inner
	}
	return n
}

// positionalParams returns the positional parameter names of a parameters
// node in declaration order. Collection stops at the bare "*" separator or
// at *args, after which parameters are keyword-only; **kwargs is skipped.
func positionalParams(params *sitter.Node, src []byte) []string {
	if params == nil {
		return nil
	}

	names := []string{}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(uint(i))
		switch child.Kind() {
		case "identifier":
			names = append(names, nodeText(child, src))
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, nodeText(name, src))
			}
		case "typed_parameter":
			inner := child.NamedChild(0)
			if inner == nil {
				continue
			}
			switch inner.Kind() {
			case "identifier":
				names = append(names, nodeText(inner, src))
			case "list_splat_pattern":
				return names
			}
		case "list_splat_pattern", "keyword_separator":
			return names
		}
	}
	return names
}

func nodeText(n *sitter.Node, src []byte) string {
	return string(src[n.StartByte():n.EndByte()])
}
