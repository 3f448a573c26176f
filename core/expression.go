package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Expression is a boolean or scalar predicate over table columns.
type Expression interface {
	fmt.Stringer
	expression()
}

// ColumnExpr references a table column by name.
type ColumnExpr struct {
	Name string
}

// LiteralExpr is a constant. Value is one of int64, float64, string or bool.
type LiteralExpr struct {
	Value any
}

type BinaryOp int

const (
	OpLt BinaryOp = iota
	OpLe
	OpGt
	OpGe
	OpEq
	OpNe
)

var binaryOpSymbols = map[BinaryOp]string{
	OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=", OpEq: "=", OpNe: "!=",
}

func (op BinaryOp) String() string {
	if s, ok := binaryOpSymbols[op]; ok {
		return s
	}
	return "?"
}

// Negate returns the operator satisfying exactly the rows op does not (ignoring nulls).
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	case OpEq:
		return OpNe
	default:
		return OpEq
	}
}

// Flip returns the operator to use when the operands are swapped.
func (op BinaryOp) Flip() BinaryOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op
	}
}

type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expression
}

type JunctionOp int

const (
	OpAnd JunctionOp = iota
	OpOr
)

type JunctionExpr struct {
	Op       JunctionOp
	Children []Expression
}

type NotExpr struct {
	Child Expression
}

// NullCheckExpr is IS NULL, or IS NOT NULL when Negated is set.
type NullCheckExpr struct {
	Child   Expression
	Negated bool
}

func (ColumnExpr) expression()    {}
func (LiteralExpr) expression()   {}
func (BinaryExpr) expression()    {}
func (JunctionExpr) expression()  {}
func (NotExpr) expression()       {}
func (NullCheckExpr) expression() {}

func (c ColumnExpr) String() string { return c.Name }

func (l LiteralExpr) String() string {
	if s, ok := l.Value.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(l.Value)
}

func (b BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

func (j JunctionExpr) String() string {
	sep := " AND "
	if j.Op == OpOr {
		sep = " OR "
	}
	parts := make([]string, len(j.Children))
	for i, c := range j.Children {
		parts[i] = c.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (n NotExpr) String() string { return "NOT " + n.Child.String() }

func (n NullCheckExpr) String() string {
	if n.Negated {
		return n.Child.String() + " IS NOT NULL"
	}
	return n.Child.String() + " IS NULL"
}

func Column(name string) Expression { return ColumnExpr{Name: name} }
func Literal(v any) Expression      { return LiteralExpr{Value: normalizeLiteral(v)} }

func Lt(l, r Expression) Expression { return BinaryExpr{Op: OpLt, Left: l, Right: r} }
func Le(l, r Expression) Expression { return BinaryExpr{Op: OpLe, Left: l, Right: r} }
func Gt(l, r Expression) Expression { return BinaryExpr{Op: OpGt, Left: l, Right: r} }
func Ge(l, r Expression) Expression { return BinaryExpr{Op: OpGe, Left: l, Right: r} }
func Eq(l, r Expression) Expression { return BinaryExpr{Op: OpEq, Left: l, Right: r} }
func Ne(l, r Expression) Expression { return BinaryExpr{Op: OpNe, Left: l, Right: r} }

func And(children ...Expression) Expression { return JunctionExpr{Op: OpAnd, Children: children} }
func Or(children ...Expression) Expression  { return JunctionExpr{Op: OpOr, Children: children} }
func Not(child Expression) Expression       { return NotExpr{Child: child} }

func IsNull(child Expression) Expression    { return NullCheckExpr{Child: child} }
func IsNotNull(child Expression) Expression { return NullCheckExpr{Child: child, Negated: true} }

func normalizeLiteral(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// ParsePredicate parses the short predicate form used by configuration files
// and debug tools: "column op literal", "column IS NULL" or
// "column IS NOT NULL". Literals are quoted strings, integers, floats, true or
// false; any other bare word is taken as a string.
func ParsePredicate(s string) (Expression, error) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 3 && strings.EqualFold(fields[1], "is") && strings.EqualFold(fields[2], "null"):
		return IsNull(Column(fields[0])), nil
	case len(fields) == 4 && strings.EqualFold(fields[1], "is") && strings.EqualFold(fields[2], "not") && strings.EqualFold(fields[3], "null"):
		return IsNotNull(Column(fields[0])), nil
	}

	// Rejoin the literal so quoted strings may contain spaces.
	if len(fields) < 3 {
		return nil, fmt.Errorf("invalid predicate %q: expected \"column op literal\"", s)
	}
	var op BinaryOp
	found := false
	for candidate, sym := range binaryOpSymbols {
		if fields[1] == sym {
			op, found = candidate, true
			break
		}
	}
	if !found {
		if fields[1] == "==" {
			op, found = OpEq, true
		} else if fields[1] == "<>" {
			op, found = OpNe, true
		}
	}
	if !found {
		return nil, fmt.Errorf("invalid predicate %q: unknown operator %q", s, fields[1])
	}
	rest := s[strings.Index(s, fields[0])+len(fields[0]):]
	rawLiteral := strings.TrimSpace(rest[strings.Index(rest, fields[1])+len(fields[1]):])
	return BinaryExpr{Op: op, Left: Column(fields[0]), Right: Literal(parseLiteral(rawLiteral))}, nil
}

func parseLiteral(raw string) any {
	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return raw[1 : len(raw)-1]
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	// NaN has no place in min/max ordering; it stays a bare word.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(f) {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	return raw
}
