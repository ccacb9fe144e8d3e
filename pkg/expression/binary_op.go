package expression

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// BinaryOperator 二元运算符
type BinaryOperator int

const (
	Eq BinaryOperator = iota
	NotEq
	Lt
	LtEq
	Gt
	GtEq
	And
	Or
	Plus
	Minus
	Multiply
	Divide
)

// String 返回运算符的 SQL 形式
func (op BinaryOperator) String() string {
	switch op {
	case Eq:
		return "="
	case NotEq:
		return "!="
	case Lt:
		return "<"
	case LtEq:
		return "<="
	case Gt:
		return ">"
	case GtEq:
		return ">="
	case And:
		return "AND"
	case Or:
		return "OR"
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	default:
		return "?"
	}
}

// IsComparison 是否为比较运算符
func (op BinaryOperator) IsComparison() bool {
	switch op {
	case Eq, NotEq, Lt, LtEq, Gt, GtEq:
		return true
	}
	return false
}

// IsLogical 是否为逻辑运算符
func (op BinaryOperator) IsLogical() bool {
	return op == And || op == Or
}

// BinaryOp 二元运算表达式。比较产生布尔；整数算术按宽度提升；
// AND/OR 遵循 SQL 三值逻辑，其余运算空值输入产生空值。
type BinaryOp struct {
	Op    BinaryOperator
	Left  Expr
	Right Expr
}

// NewBinaryOp 创建二元运算表达式
func NewBinaryOp(op BinaryOperator, left, right Expr) *BinaryOp {
	return &BinaryOp{Op: op, Left: left, Right: right}
}

// Evaluate 求值
func (e *BinaryOp) Evaluate(t *types.Tuple) (types.Value, error) {
	left, err := e.Left.Evaluate(t)
	if err != nil {
		return types.Value{}, err
	}
	right, err := e.Right.Evaluate(t)
	if err != nil {
		return types.Value{}, err
	}

	switch {
	case e.Op.IsLogical():
		return evalLogical(e.Op, left, right)
	case e.Op.IsComparison():
		return evalComparison(e.Op, left, right)
	default:
		return types.Arithmetic(e.Op.String(), left, right)
	}
}

func evalLogical(op BinaryOperator, left, right types.Value) (types.Value, error) {
	l, err := asBool(left)
	if err != nil {
		return types.Value{}, err
	}
	r, err := asBool(right)
	if err != nil {
		return types.Value{}, err
	}
	// 三值逻辑：nil 表示未知
	if op == And {
		switch {
		case l != nil && !*l, r != nil && !*r:
			return types.NewBooleanValue(false), nil
		case l == nil || r == nil:
			return types.NewNullValue(types.TypeBoolean), nil
		default:
			return types.NewBooleanValue(true), nil
		}
	}
	switch {
	case l != nil && *l, r != nil && *r:
		return types.NewBooleanValue(true), nil
	case l == nil || r == nil:
		return types.NewNullValue(types.TypeBoolean), nil
	default:
		return types.NewBooleanValue(false), nil
	}
}

func asBool(v types.Value) (*bool, error) {
	if v.Null {
		return nil, nil
	}
	if v.Type != types.TypeBoolean {
		return nil, fmt.Errorf("logical operand wants boolean, got %s", v.Type)
	}
	b := v.Bool
	return &b, nil
}

func evalComparison(op BinaryOperator, left, right types.Value) (types.Value, error) {
	if left.Null || right.Null {
		return types.NewNullValue(types.TypeBoolean), nil
	}
	c, err := left.Compare(right)
	if err != nil {
		return types.Value{}, err
	}
	var result bool
	switch op {
	case Eq:
		result = c == 0
	case NotEq:
		result = c != 0
	case Lt:
		result = c < 0
	case LtEq:
		result = c <= 0
	case Gt:
		result = c > 0
	case GtEq:
		result = c >= 0
	}
	return types.NewBooleanValue(result), nil
}

// DataType 结果类型
func (e *BinaryOp) DataType(schema *types.Schema) (types.DataType, error) {
	if e.Op.IsComparison() || e.Op.IsLogical() {
		return types.TypeBoolean, nil
	}
	lt, err := e.Left.DataType(schema)
	if err != nil {
		return types.TypeInvalid, err
	}
	rt, err := e.Right.DataType(schema)
	if err != nil {
		return types.TypeInvalid, err
	}
	return types.PromoteTypes(lt, rt)
}

// Nullable 结果可空性
func (e *BinaryOp) Nullable(schema *types.Schema) (bool, error) {
	ln, err := e.Left.Nullable(schema)
	if err != nil {
		return false, err
	}
	rn, err := e.Right.Nullable(schema)
	if err != nil {
		return false, err
	}
	return ln || rn, nil
}

func (e *BinaryOp) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}
