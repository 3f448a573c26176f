package filter

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/INLOpen/nexuslog/core"
	"github.com/tidwall/gjson"
)

// normalize pushes NOT down to the leaves and puts the column on the left of
// every comparison, so canSkip only handles positive forms.
func normalize(expr core.Expression, negate bool) core.Expression {
	switch e := expr.(type) {
	case core.NotExpr:
		return normalize(e.Child, !negate)
	case core.JunctionExpr:
		op := e.Op
		if negate {
			if op == core.OpAnd {
				op = core.OpOr
			} else {
				op = core.OpAnd
			}
		}
		children := make([]core.Expression, len(e.Children))
		for i, c := range e.Children {
			children[i] = normalize(c, negate)
		}
		return core.JunctionExpr{Op: op, Children: children}
	case core.BinaryExpr:
		op, left, right := e.Op, e.Left, e.Right
		if _, isLit := left.(core.LiteralExpr); isLit {
			if _, isCol := right.(core.ColumnExpr); isCol {
				op, left, right = op.Flip(), right, left
			}
		}
		if negate {
			op = op.Negate()
		}
		return core.BinaryExpr{Op: op, Left: left, Right: right}
	case core.NullCheckExpr:
		if negate {
			return core.NullCheckExpr{Child: e.Child, Negated: !e.Negated}
		}
		return e
	default:
		if negate {
			return core.NotExpr{Child: expr}
		}
		return expr
	}
}

// canSkip reports whether the file statistics prove that no row matches.
// Anything it cannot decide returns false.
func (f *DataSkippingFilter) canSkip(expr core.Expression, stats gjson.Result) bool {
	switch e := expr.(type) {
	case core.JunctionExpr:
		if len(e.Children) == 0 {
			return false
		}
		if e.Op == core.OpAnd {
			for _, c := range e.Children {
				if f.canSkip(c, stats) {
					return true
				}
			}
			return false
		}
		for _, c := range e.Children {
			if !f.canSkip(c, stats) {
				return false
			}
		}
		return true
	case core.BinaryExpr:
		return f.canSkipComparison(e, stats)
	case core.NullCheckExpr:
		return f.canSkipNullCheck(e, stats)
	default:
		return false
	}
}

func (f *DataSkippingFilter) canSkipComparison(e core.BinaryExpr, stats gjson.Result) bool {
	col, ok := e.Left.(core.ColumnExpr)
	if !ok {
		return false
	}
	lit, ok := e.Right.(core.LiteralExpr)
	if !ok {
		return false
	}
	field, ok := f.schema.Column(col.Name)
	if !ok {
		return false
	}

	lower := stats.Get("minValues." + escapePath(col.Name))
	upper := stats.Get("maxValues." + escapePath(col.Name))
	minCmp, hasMin := compare(field.Type, lower, lit.Value, false)
	maxCmp, hasMax := compare(field.Type, upper, lit.Value, true)

	switch e.Op {
	case core.OpLt:
		return hasMin && minCmp >= 0
	case core.OpLe:
		return hasMin && minCmp > 0
	case core.OpGt:
		return hasMax && maxCmp <= 0
	case core.OpGe:
		return hasMax && maxCmp < 0
	case core.OpEq:
		return (hasMin && minCmp > 0) || (hasMax && maxCmp < 0)
	case core.OpNe:
		return hasMin && hasMax && minCmp == 0 && maxCmp == 0
	}
	return false
}

func (f *DataSkippingFilter) canSkipNullCheck(e core.NullCheckExpr, stats gjson.Result) bool {
	col, ok := e.Child.(core.ColumnExpr)
	if !ok {
		return false
	}
	if _, ok := f.schema.Column(col.Name); !ok {
		return false
	}
	nullCount := stats.Get("nullCount." + escapePath(col.Name))
	if nullCount.Type != gjson.Number {
		return false
	}
	if !e.Negated {
		return nullCount.Int() == 0
	}
	numRecords := stats.Get("numRecords")
	if numRecords.Type != gjson.Number {
		return false
	}
	return nullCount.Int() == numRecords.Int()
}

// compare orders a statistics bound against a literal in the column's type
// domain. ok is false when the bound is missing, a side is NaN, or the types
// do not line up. isUpper marks a maxValues bound.
func compare(typ core.DataType, bound gjson.Result, literal any, isUpper bool) (cmp int, ok bool) {
	if !bound.Exists() || bound.Type == gjson.Null {
		return 0, false
	}
	if f, isFloat := literal.(float64); isFloat && math.IsNaN(f) {
		return 0, false
	}
	switch typ {
	case core.TypeLong, core.TypeInteger, core.TypeShort, core.TypeByte:
		if bound.Type != gjson.Number {
			return 0, false
		}
		switch v := literal.(type) {
		case int64:
			b, err := strconv.ParseInt(bound.Raw, 10, 64)
			if err != nil {
				return 0, false
			}
			return compareOrdered(b, v), true
		case float64:
			return compareOrdered(bound.Float(), v), true
		}
	case core.TypeDouble, core.TypeFloat:
		if bound.Type != gjson.Number || math.IsNaN(bound.Float()) {
			return 0, false
		}
		switch v := literal.(type) {
		case int64:
			return compareOrdered(bound.Float(), float64(v)), true
		case float64:
			return compareOrdered(bound.Float(), v), true
		}
	case core.TypeString:
		if bound.Type != gjson.String {
			return 0, false
		}
		if v, isString := literal.(string); isString {
			return strings.Compare(bound.Str, v), true
		}
	case core.TypeDate:
		return compareTime(bound, literal, dateLayouts, 0)
	case core.TypeTimestamp:
		// Timestamp maxima are truncated to milliseconds.
		var slack time.Duration
		if isUpper {
			slack = time.Millisecond - time.Nanosecond
		}
		return compareTime(bound, literal, timestampLayouts, slack)
	}
	return 0, false
}

var (
	dateLayouts      = []string{time.DateOnly}
	timestampLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999Z07:00", "2006-01-02 15:04:05.999999999"}
)

// compareTime parses both sides with layouts and compares the instants, with
// slack added to the bound. Values without an offset are read as UTC.
func compareTime(bound gjson.Result, literal any, layouts []string, slack time.Duration) (int, bool) {
	if bound.Type != gjson.String {
		return 0, false
	}
	v, isString := literal.(string)
	if !isString {
		return 0, false
	}
	b, ok := parseTime(bound.Str, layouts)
	if !ok {
		return 0, false
	}
	l, ok := parseTime(v, layouts)
	if !ok {
		return 0, false
	}
	return b.Add(slack).Compare(l), true
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func compareOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// escapePath escapes gjson path metacharacters in a column name. Dots are
// kept: "a.b" addresses field b of struct column a, which is how nested
// statistics are laid out.
func escapePath(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '*', '?', '|', '#', '@', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
