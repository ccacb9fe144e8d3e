package executor

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// passesAll 谓词依序求值；空值与假一样丢弃该行
func passesAll(predicates []expression.Expr, tuple *types.Tuple) (bool, error) {
	for _, predicate := range predicates {
		v, err := predicate.Evaluate(tuple)
		if err != nil {
			return false, err
		}
		if v.Null || v.Type != types.TypeBoolean || !v.Bool {
			return false, nil
		}
	}
	return true, nil
}

// FilterOperator 过滤：仅保留谓词为真的行
type FilterOperator struct {
	baseOperator
	config *FilterConfig
	child  Operator
}

// Init 初始化
func (op *FilterOperator) Init(ctx *ExecutionContext) error {
	if err := op.child.Init(ctx); err != nil {
		return err
	}
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *FilterOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	for {
		tuple, err := op.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			op.drain()
			return nil, nil
		}
		keep, err := passesAll([]expression.Expr{op.config.Predicate}, tuple)
		if err != nil {
			return nil, err
		}
		if keep {
			return tuple, nil
		}
	}
}

// ProjectOperator 投影：对每行求值输出表达式
type ProjectOperator struct {
	baseOperator
	config *ProjectConfig
	child  Operator
}

// Init 初始化
func (op *ProjectOperator) Init(ctx *ExecutionContext) error {
	if err := op.child.Init(ctx); err != nil {
		return err
	}
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *ProjectOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	input, err := op.child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if input == nil {
		op.drain()
		return nil, nil
	}
	values := make([]types.Value, 0, len(op.config.Exprs))
	for _, expr := range op.config.Exprs {
		v, err := expr.Evaluate(input)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	tuple, err := types.NewTuple(op.schema, values)
	if err != nil {
		return nil, fmt.Errorf("project output: %w", err)
	}
	return tuple, nil
}

// LimitOperator 行数限制：先丢弃 offset 行，再产出至多 limit 行
type LimitOperator struct {
	baseOperator
	config  *LimitConfig
	child   Operator
	skipped int64
	emitted int64
}

// Init 初始化
func (op *LimitOperator) Init(ctx *ExecutionContext) error {
	if err := op.child.Init(ctx); err != nil {
		return err
	}
	op.skipped = 0
	op.emitted = 0
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *LimitOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	for {
		if op.config.Limit != nil && op.emitted >= *op.config.Limit {
			op.drain()
			return nil, nil
		}
		tuple, err := op.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			op.drain()
			return nil, nil
		}
		if op.config.Offset != nil && op.skipped < *op.config.Offset {
			op.skipped++
			continue
		}
		op.emitted++
		return tuple, nil
	}
}

// SortOperator 排序：物化全部输入，逐键比较，ASC 时空值最后、
// DESC 时空值最前；相等键保持输入顺序。Varchar 使用排序规则比较。
type SortOperator struct {
	baseOperator
	config   *SortConfig
	child    Operator
	rows     []*types.Tuple
	keys     [][]types.Value
	cursor   int
	collator *collate.Collator
}

// Init 初始化：拉空子算子并排序
func (op *SortOperator) Init(ctx *ExecutionContext) error {
	if err := op.child.Init(ctx); err != nil {
		return err
	}
	op.collator = collate.New(language.Und)
	op.rows = op.rows[:0]
	op.keys = op.keys[:0]
	op.cursor = 0

	for {
		tuple, err := op.child.Next(ctx)
		if err != nil {
			return err
		}
		if tuple == nil {
			break
		}
		key := make([]types.Value, 0, len(op.config.Keys))
		for _, k := range op.config.Keys {
			v, err := k.Expr.Evaluate(tuple)
			if err != nil {
				return err
			}
			key = append(key, v)
		}
		op.rows = append(op.rows, tuple)
		op.keys = append(op.keys, key)
	}

	var sortErr error
	order := make([]int, len(op.rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		less, err := op.keyLess(op.keys[order[a]], op.keys[order[b]])
		if err != nil {
			sortErr = err
			return false
		}
		return less
	})
	if sortErr != nil {
		return sortErr
	}
	sorted := make([]*types.Tuple, len(op.rows))
	for i, idx := range order {
		sorted[i] = op.rows[idx]
	}
	op.rows = sorted
	op.markInitialized()
	return nil
}

// keyLess 逐键比较两行
func (op *SortOperator) keyLess(a, b []types.Value) (bool, error) {
	for i, k := range op.config.Keys {
		c, err := op.compareValues(a[i], b[i])
		if err != nil {
			return false, err
		}
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0, nil
		}
		return c < 0, nil
	}
	return false, nil
}

// compareValues 带空值语义的比较：空值在升序中排最后
// （比任何值大），降序取反后自然排最前
func (op *SortOperator) compareValues(a, b types.Value) (int, error) {
	switch {
	case a.Null && b.Null:
		return 0, nil
	case a.Null:
		return 1, nil
	case b.Null:
		return -1, nil
	}
	if a.Type == types.TypeVarchar && b.Type == types.TypeVarchar {
		return op.collator.CompareString(a.Str, b.Str), nil
	}
	return a.Compare(b)
}

// Next 返回下一行
func (op *SortOperator) Next(_ *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.cursor >= len(op.rows) {
		op.drain()
		return nil, nil
	}
	tuple := op.rows[op.cursor]
	op.cursor++
	return tuple, nil
}
