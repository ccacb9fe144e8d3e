package executor

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/table"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// EmptyRelationOperator 空关系：可配置产出一行空元组，
// 支撑无 FROM 的表达式查询。
type EmptyRelationOperator struct {
	baseOperator
	config  *EmptyRelationConfig
	emitted bool
}

// Init 初始化
func (op *EmptyRelationOperator) Init(_ *ExecutionContext) error {
	op.markInitialized()
	op.emitted = false
	return nil
}

// Next 返回下一行
func (op *EmptyRelationOperator) Next(_ *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.config.ProduceOneRow && !op.emitted {
		op.emitted = true
		return types.EmptyTuple(), nil
	}
	op.drain()
	return nil, nil
}

// ValuesOperator 常量行：逐行对空元组求值
type ValuesOperator struct {
	baseOperator
	config *ValuesConfig
	cursor int
}

// Init 初始化
func (op *ValuesOperator) Init(_ *ExecutionContext) error {
	op.markInitialized()
	op.cursor = 0
	return nil
}

// Next 返回下一行
func (op *ValuesOperator) Next(_ *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.cursor >= len(op.config.Rows) {
		op.drain()
		return nil, nil
	}
	row := op.config.Rows[op.cursor]
	op.cursor++

	empty := types.EmptyTuple()
	values := make([]types.Value, 0, len(row))
	for _, expr := range row {
		v, err := expr.Evaluate(empty)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	tuple, err := types.NewTuple(op.schema, values)
	if err != nil {
		return nil, fmt.Errorf("values row %d: %w", op.cursor-1, err)
	}
	return tuple, nil
}

// TableScanOperator 全表扫描：按页链顺序产出，按序应用下推过滤，
// 并在达到内嵌行数上限时提前结束。
type TableScanOperator struct {
	baseOperator
	config  *TableScanConfig
	iter    *table.TableIterator
	emitted uint64
}

// Init 初始化：打开表堆迭代器
func (op *TableScanOperator) Init(ctx *ExecutionContext) error {
	info, err := ctx.Catalog.GetTable(op.config.Table)
	if err != nil {
		return err
	}
	op.iter = info.Heap.Iterator()
	op.emitted = 0
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *TableScanOperator) Next(_ *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	for {
		if op.config.Limit != nil && op.emitted >= *op.config.Limit {
			op.drain()
			return nil, nil
		}
		_, tuple, err := op.iter.Next()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			op.drain()
			return nil, nil
		}
		keep, err := passesAll(op.config.Filters, tuple)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		op.emitted++
		return tuple, nil
	}
}
