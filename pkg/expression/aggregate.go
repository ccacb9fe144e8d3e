package expression

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// AggregateFunc 聚合函数种类
type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggAvg
)

// String 返回函数名
func (f AggregateFunc) String() string {
	switch f {
	case AggCount:
		return "COUNT"
	case AggAvg:
		return "AVG"
	default:
		return "UNKNOWN"
	}
}

// AggregateExpr 聚合占位表达式：只参与类型推导，求值由执行器
// 通过累加器驱动。
type AggregateExpr struct {
	Func  AggregateFunc
	Child Expr
}

// NewAggregateExpr 创建聚合占位表达式
func NewAggregateExpr(f AggregateFunc, child Expr) *AggregateExpr {
	return &AggregateExpr{Func: f, Child: child}
}

// Evaluate 聚合占位不能直接求值
func (e *AggregateExpr) Evaluate(_ *types.Tuple) (types.Value, error) {
	return types.Value{}, fmt.Errorf("aggregate %s cannot be evaluated per row", e.Func)
}

// DataType 结果类型
func (e *AggregateExpr) DataType(_ *types.Schema) (types.DataType, error) {
	switch e.Func {
	case AggCount:
		return types.TypeInt64, nil
	case AggAvg:
		return types.TypeFloat64, nil
	default:
		return types.TypeInvalid, fmt.Errorf("unknown aggregate func %d", e.Func)
	}
}

// Nullable 结果可空性
func (e *AggregateExpr) Nullable(_ *types.Schema) (bool, error) {
	return e.Func == AggAvg, nil
}

func (e *AggregateExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Func, e.Child)
}

// Accumulator 聚合累加器
type Accumulator interface {
	// UpdateValue 吸收一个输入值
	UpdateValue(v types.Value) error
	// Evaluate 返回聚合结果
	Evaluate() (types.Value, error)
}

// NewAccumulator 按函数种类创建累加器
func NewAccumulator(f AggregateFunc) (Accumulator, error) {
	switch f {
	case AggCount:
		return &CountAccumulator{}, nil
	case AggAvg:
		return &AvgAccumulator{}, nil
	default:
		return nil, fmt.Errorf("unknown aggregate func %d", f)
	}
}

// CountAccumulator COUNT 累加器，忽略空值
type CountAccumulator struct {
	count int64
}

// UpdateValue 吸收一个输入值
func (a *CountAccumulator) UpdateValue(v types.Value) error {
	if !v.Null {
		a.count++
	}
	return nil
}

// Evaluate 返回计数
func (a *CountAccumulator) Evaluate() (types.Value, error) {
	return types.NewInt64Value(a.count), nil
}

// AvgAccumulator AVG 累加器，无输入时结果为空值
type AvgAccumulator struct {
	sum   float64
	count uint64
}

// UpdateValue 吸收一个输入值
func (a *AvgAccumulator) UpdateValue(v types.Value) error {
	if v.Null {
		return nil
	}
	if !v.Type.IsNumeric() {
		return fmt.Errorf("AVG wants numeric input, got %s", v.Type)
	}
	a.sum += v.AsFloat64()
	a.count++
	return nil
}

// Evaluate 返回均值
func (a *AvgAccumulator) Evaluate() (types.Value, error) {
	if a.count == 0 {
		return types.NewNullValue(types.TypeFloat64), nil
	}
	return types.NewFloat64Value(a.sum / float64(a.count)), nil
}
