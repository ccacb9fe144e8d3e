package executor

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/planner"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// NestedLoopJoinOperator 嵌套循环连接：左侧驱动，右侧物化后
// 对每个左行重放。外连接在无匹配时补空行。
type NestedLoopJoinOperator struct {
	baseOperator
	config *JoinConfig
	left   Operator
	right  Operator

	rightRows    []*types.Tuple
	rightMatched []bool

	currentLeft *types.Tuple
	leftMatched bool
	rightCursor int

	// 左侧耗尽后，RIGHT/FULL 连接补齐未匹配的右行
	remainderCursor int
	probeDone       bool
}

// Init 初始化：物化右侧输入
func (op *NestedLoopJoinOperator) Init(ctx *ExecutionContext) error {
	if err := op.left.Init(ctx); err != nil {
		return err
	}
	if err := op.right.Init(ctx); err != nil {
		return err
	}
	op.rightRows = op.rightRows[:0]
	for {
		tuple, err := op.right.Next(ctx)
		if err != nil {
			return err
		}
		if tuple == nil {
			break
		}
		op.rightRows = append(op.rightRows, tuple)
	}
	op.rightMatched = make([]bool, len(op.rightRows))
	op.currentLeft = nil
	op.rightCursor = 0
	op.remainderCursor = 0
	op.probeDone = false
	op.markInitialized()
	return nil
}

func (op *NestedLoopJoinOperator) padsLeft() bool {
	return op.config.JoinType == planner.RightOuterJoin || op.config.JoinType == planner.FullOuterJoin
}

func (op *NestedLoopJoinOperator) padsRight() bool {
	return op.config.JoinType == planner.LeftOuterJoin || op.config.JoinType == planner.FullOuterJoin
}

// matches 判断左右行是否满足连接条件
func (op *NestedLoopJoinOperator) matches(joined *types.Tuple) (bool, error) {
	if op.config.Condition == nil {
		if op.config.JoinType != planner.CrossJoin {
			return false, fmt.Errorf("%s has no join condition", op.config.JoinType)
		}
		return true, nil
	}
	v, err := op.config.Condition.Evaluate(joined)
	if err != nil {
		return false, err
	}
	return !v.Null && v.Type == types.TypeBoolean && v.Bool, nil
}

// Next 返回下一行
func (op *NestedLoopJoinOperator) Next(ctx *ExecutionContext) (*types.Tuple, error) {
	if err := op.checkNext(); err != nil {
		return nil, err
	}

	for !op.probeDone {
		if op.currentLeft == nil {
			tuple, err := op.left.Next(ctx)
			if err != nil {
				return nil, err
			}
			if tuple == nil {
				op.probeDone = true
				break
			}
			op.currentLeft = tuple
			op.leftMatched = false
			op.rightCursor = 0
		}

		for op.rightCursor < len(op.rightRows) {
			idx := op.rightCursor
			op.rightCursor++
			joined := types.JoinTuple(op.schema, op.currentLeft, op.rightRows[idx])
			ok, err := op.matches(joined)
			if err != nil {
				return nil, err
			}
			if ok {
				op.leftMatched = true
				op.rightMatched[idx] = true
				return joined, nil
			}
		}

		// 当前左行与右侧全部比较完毕
		left := op.currentLeft
		matched := op.leftMatched
		op.currentLeft = nil
		if !matched && op.padsRight() {
			return types.JoinTuple(op.schema, left, types.NullTuple(op.right.Schema())), nil
		}
	}

	if op.padsLeft() {
		for op.remainderCursor < len(op.rightRows) {
			idx := op.remainderCursor
			op.remainderCursor++
			if op.rightMatched[idx] {
				continue
			}
			return types.JoinTuple(op.schema, types.NullTuple(op.left.Schema()), op.rightRows[idx]), nil
		}
	}
	op.drain()
	return nil, nil
}
