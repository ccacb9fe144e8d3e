package executor

import (
	"github.com/kasuganosora/pagedb/pkg/catalog"
	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/table"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// CreateTableOperator 建表：首次 Next 时登记目录，随即耗尽
type CreateTableOperator struct {
	baseOperator
	config *CreateTableConfig
}

// Init 初始化
func (op *CreateTableOperator) Init(_ *ExecutionContext) error {
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *CreateTableOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if _, err := ctx.Catalog.CreateTable(op.config.Name, op.config.TableSchema); err != nil {
		return nil, err
	}
	op.drain()
	return nil, nil
}

// InsertOperator 插入：拉空子算子逐行写入表堆，
// 耗尽后产出一行受影响行数
type InsertOperator struct {
	baseOperator
	config *InsertConfig
	child  Operator
	done   bool
}

// Init 初始化
func (op *InsertOperator) Init(ctx *ExecutionContext) error {
	if err := op.child.Init(ctx); err != nil {
		return err
	}
	op.done = false
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *InsertOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.done {
		op.drain()
		return nil, nil
	}

	info, err := ctx.Catalog.GetTable(op.config.Table)
	if err != nil {
		return nil, err
	}
	var count int32
	for {
		tuple, err := op.child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			break
		}
		row, err := types.NewTuple(info.Schema, tuple.Values)
		if err != nil {
			return nil, err
		}
		if _, err := info.Heap.InsertTuple(row); err != nil {
			return nil, err
		}
		count++
	}
	op.done = true
	return &types.Tuple{
		Schema: op.schema,
		Values: []types.Value{types.NewInt32Value(count)},
	}, nil
}

// UpdateOperator 更新：遍历匹配行的 RID，对每行求值赋值表达式后
// 原地写回表堆
type UpdateOperator struct {
	baseOperator
	config     *UpdateConfig
	predicates []expression.Expr
	done       bool
}

// Init 初始化
func (op *UpdateOperator) Init(_ *ExecutionContext) error {
	op.done = false
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *UpdateOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.done {
		op.drain()
		return nil, nil
	}

	info, err := ctx.Catalog.GetTable(op.config.Table)
	if err != nil {
		return nil, err
	}

	// 先收集匹配的 RID，再写回，避免迭代中读到自己的修改
	matched, err := matchRIDs(info, op.predicates)
	if err != nil {
		return nil, err
	}

	var count int32
	for _, rid := range matched {
		tuple, err := info.Heap.GetTuple(rid)
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			continue
		}
		values := make([]types.Value, len(tuple.Values))
		copy(values, tuple.Values)
		for _, a := range op.config.Assignments {
			v, err := a.Value.Evaluate(tuple)
			if err != nil {
				return nil, err
			}
			values[a.ColumnIndex] = v
		}
		updated, err := types.NewTuple(info.Schema, values)
		if err != nil {
			return nil, err
		}
		if err := info.Heap.UpdateTuple(rid, updated); err != nil {
			return nil, err
		}
		count++
	}
	op.done = true
	return &types.Tuple{
		Schema: op.schema,
		Values: []types.Value{types.NewInt32Value(count)},
	}, nil
}

// DeleteOperator 删除：标记匹配行的槽为已删除
type DeleteOperator struct {
	baseOperator
	config     *DeleteConfig
	predicates []expression.Expr
	done       bool
}

// Init 初始化
func (op *DeleteOperator) Init(_ *ExecutionContext) error {
	op.done = false
	op.markInitialized()
	return nil
}

// Next 返回下一行
func (op *DeleteOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}
	if op.done {
		op.drain()
		return nil, nil
	}

	info, err := ctx.Catalog.GetTable(op.config.Table)
	if err != nil {
		return nil, err
	}
	matched, err := matchRIDs(info, op.predicates)
	if err != nil {
		return nil, err
	}
	var count int32
	for _, rid := range matched {
		if err := info.Heap.DeleteTuple(rid); err != nil {
			return nil, err
		}
		count++
	}
	op.done = true
	return &types.Tuple{
		Schema: op.schema,
		Values: []types.Value{types.NewInt32Value(count)},
	}, nil
}

// matchRIDs 全表扫描，返回满足全部谓词的行标识
func matchRIDs(info *catalog.TableInfo, predicates []expression.Expr) ([]table.RID, error) {
	it := info.Heap.Iterator()
	matched := make([]table.RID, 0, 16)
	for {
		rid, tuple, err := it.Next()
		if err != nil {
			return nil, err
		}
		if tuple == nil {
			return matched, nil
		}
		keep, err := passesAll(predicates, tuple)
		if err != nil {
			return nil, err
		}
		if keep {
			matched = append(matched, rid)
		}
	}
}
