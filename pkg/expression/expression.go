package expression

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// Expr 标量表达式。Evaluate 对一行求值；DataType 与 Nullable
// 在不求值的情况下报告结果类型与可空性。
type Expr interface {
	Evaluate(t *types.Tuple) (types.Value, error)
	DataType(schema *types.Schema) (types.DataType, error)
	Nullable(schema *types.Schema) (bool, error)
	String() string
}

// Literal 字面量
type Literal struct {
	Value types.Value
}

// NewLiteral 创建字面量表达式
func NewLiteral(v types.Value) *Literal {
	return &Literal{Value: v}
}

// Evaluate 求值
func (e *Literal) Evaluate(_ *types.Tuple) (types.Value, error) {
	return e.Value, nil
}

// DataType 结果类型
func (e *Literal) DataType(_ *types.Schema) (types.DataType, error) {
	return e.Value.Type, nil
}

// Nullable 结果可空性
func (e *Literal) Nullable(_ *types.Schema) (bool, error) {
	return e.Value.Null, nil
}

func (e *Literal) String() string {
	return e.Value.String()
}

// ColumnRef 列引用（可带表限定）
type ColumnRef struct {
	Table string
	Name  string
}

// NewColumnRef 创建列引用
func NewColumnRef(table, name string) *ColumnRef {
	return &ColumnRef{Table: table, Name: name}
}

// Evaluate 求值
func (e *ColumnRef) Evaluate(t *types.Tuple) (types.Value, error) {
	i, err := t.Schema.FindColumn(e.Table, e.Name)
	if err != nil {
		return types.Value{}, err
	}
	return t.Value(i), nil
}

// DataType 结果类型
func (e *ColumnRef) DataType(schema *types.Schema) (types.DataType, error) {
	i, err := schema.FindColumn(e.Table, e.Name)
	if err != nil {
		return types.TypeInvalid, err
	}
	return schema.Columns[i].Type, nil
}

// Nullable 结果可空性
func (e *ColumnRef) Nullable(schema *types.Schema) (bool, error) {
	i, err := schema.FindColumn(e.Table, e.Name)
	if err != nil {
		return false, err
	}
	return schema.Columns[i].Nullable, nil
}

func (e *ColumnRef) String() string {
	if e.Table == "" {
		return e.Name
	}
	return e.Table + "." + e.Name
}

// Alias 别名包装
type Alias struct {
	Name  string
	Child Expr
}

// NewAlias 创建别名表达式
func NewAlias(name string, child Expr) *Alias {
	return &Alias{Name: name, Child: child}
}

// Evaluate 求值
func (e *Alias) Evaluate(t *types.Tuple) (types.Value, error) {
	return e.Child.Evaluate(t)
}

// DataType 结果类型
func (e *Alias) DataType(schema *types.Schema) (types.DataType, error) {
	return e.Child.DataType(schema)
}

// Nullable 结果可空性
func (e *Alias) Nullable(schema *types.Schema) (bool, error) {
	return e.Child.Nullable(schema)
}

func (e *Alias) String() string {
	return fmt.Sprintf("%s AS %s", e.Child, e.Name)
}

// Cast 类型转换
type Cast struct {
	Target types.DataType
	Child  Expr
}

// NewCast 创建类型转换表达式
func NewCast(target types.DataType, child Expr) *Cast {
	return &Cast{Target: target, Child: child}
}

// Evaluate 求值
func (e *Cast) Evaluate(t *types.Tuple) (types.Value, error) {
	v, err := e.Child.Evaluate(t)
	if err != nil {
		return types.Value{}, err
	}
	return types.CastValue(v, e.Target)
}

// DataType 结果类型
func (e *Cast) DataType(_ *types.Schema) (types.DataType, error) {
	return e.Target, nil
}

// Nullable 结果可空性
func (e *Cast) Nullable(schema *types.Schema) (bool, error) {
	return e.Child.Nullable(schema)
}

func (e *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", e.Child, e.Target)
}

// Not 逻辑非
type Not struct {
	Child Expr
}

// NewNot 创建逻辑非表达式
func NewNot(child Expr) *Not {
	return &Not{Child: child}
}

// Evaluate 求值，空值输入得到空值
func (e *Not) Evaluate(t *types.Tuple) (types.Value, error) {
	v, err := e.Child.Evaluate(t)
	if err != nil {
		return types.Value{}, err
	}
	if v.Null {
		return types.NewNullValue(types.TypeBoolean), nil
	}
	if v.Type != types.TypeBoolean {
		return types.Value{}, fmt.Errorf("NOT wants boolean, got %s", v.Type)
	}
	return types.NewBooleanValue(!v.Bool), nil
}

// DataType 结果类型
func (e *Not) DataType(_ *types.Schema) (types.DataType, error) {
	return types.TypeBoolean, nil
}

// Nullable 结果可空性
func (e *Not) Nullable(schema *types.Schema) (bool, error) {
	return e.Child.Nullable(schema)
}

func (e *Not) String() string {
	return fmt.Sprintf("NOT %s", e.Child)
}
