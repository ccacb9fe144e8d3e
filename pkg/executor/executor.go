package executor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/catalog"
	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// ExecutionContext 单条查询的执行上下文，可变地借用目录与缓冲池。
// 预留将来挂接事务句柄的位置。
type ExecutionContext struct {
	QueryID string
	Catalog *catalog.Catalog
	Pool    *buffer.BufferPool
}

// NewExecutionContext 创建执行上下文
func NewExecutionContext(c *catalog.Catalog, pool *buffer.BufferPool) *ExecutionContext {
	return &ExecutionContext{
		QueryID: uuid.NewString(),
		Catalog: c,
		Pool:    pool,
	}
}

// Operator 火山模型算子。Init 必须先于任何 Next 调用；
// Next 返回下一行，耗尽后返回 nil。
type Operator interface {
	Init(ctx *ExecutionContext) error
	Next(ctx *ExecutionContext) (*types.Tuple, error)
	Schema() *types.Schema
}

// 算子状态机：Uninit → Initialized → Drained
type operatorState int

const (
	stateUninit operatorState = iota
	stateInitialized
	stateDrained
)

type baseOperator struct {
	schema *types.Schema
	state  operatorState
}

// Schema 输出列
func (op *baseOperator) Schema() *types.Schema {
	return op.schema
}

func (op *baseOperator) markInitialized() {
	op.state = stateInitialized
}

// checkNext 校验 Next 调用的状态机约束
func (op *baseOperator) checkNext() error {
	switch op.state {
	case stateUninit:
		return fmt.Errorf("operator used before Init")
	case stateDrained:
		return fmt.Errorf("operator used after it was drained")
	}
	return nil
}

func (op *baseOperator) drain() {
	op.state = stateDrained
}

// BuildOperator 按物理计划构建算子树
func BuildOperator(plan *PhysicalPlan) (Operator, error) {
	children := make([]Operator, 0, len(plan.Children))
	for _, child := range plan.Children {
		op, err := BuildOperator(child)
		if err != nil {
			return nil, err
		}
		children = append(children, op)
	}

	base := baseOperator{schema: plan.OutputSchema}
	switch plan.Type {
	case TypeCreateTable:
		config := plan.Config.(*CreateTableConfig)
		return &CreateTableOperator{baseOperator: base, config: config}, nil
	case TypeValues:
		config := plan.Config.(*ValuesConfig)
		return &ValuesOperator{baseOperator: base, config: config}, nil
	case TypeInsert:
		config := plan.Config.(*InsertConfig)
		if len(children) != 1 {
			return nil, fmt.Errorf("Insert wants 1 child, got %d", len(children))
		}
		return &InsertOperator{baseOperator: base, config: config, child: children[0]}, nil
	case TypeTableScan:
		config := plan.Config.(*TableScanConfig)
		return &TableScanOperator{baseOperator: base, config: config}, nil
	case TypeFilter:
		config := plan.Config.(*FilterConfig)
		if len(children) != 1 {
			return nil, fmt.Errorf("Filter wants 1 child, got %d", len(children))
		}
		return &FilterOperator{baseOperator: base, config: config, child: children[0]}, nil
	case TypeProject:
		config := plan.Config.(*ProjectConfig)
		if len(children) != 1 {
			return nil, fmt.Errorf("Project wants 1 child, got %d", len(children))
		}
		return &ProjectOperator{baseOperator: base, config: config, child: children[0]}, nil
	case TypeLimit:
		config := plan.Config.(*LimitConfig)
		if len(children) != 1 {
			return nil, fmt.Errorf("Limit wants 1 child, got %d", len(children))
		}
		return &LimitOperator{baseOperator: base, config: config, child: children[0]}, nil
	case TypeSort:
		config := plan.Config.(*SortConfig)
		if len(children) != 1 {
			return nil, fmt.Errorf("Sort wants 1 child, got %d", len(children))
		}
		return &SortOperator{baseOperator: base, config: config, child: children[0]}, nil
	case TypeNestedLoopJoin:
		config := plan.Config.(*JoinConfig)
		if len(children) != 2 {
			return nil, fmt.Errorf("NestedLoopJoin wants 2 children, got %d", len(children))
		}
		return &NestedLoopJoinOperator{
			baseOperator: base,
			config:       config,
			left:         children[0],
			right:        children[1],
		}, nil
	case TypeUpdate:
		config := plan.Config.(*UpdateConfig)
		return &UpdateOperator{baseOperator: base, config: config, predicates: collectPredicates(plan)}, nil
	case TypeDelete:
		config := plan.Config.(*DeleteConfig)
		return &DeleteOperator{baseOperator: base, config: config, predicates: collectPredicates(plan)}, nil
	case TypeEmptyRelation:
		config := plan.Config.(*EmptyRelationConfig)
		return &EmptyRelationOperator{baseOperator: base, config: config}, nil
	default:
		return nil, fmt.Errorf("no operator for plan type %s", plan.Type)
	}
}

// collectPredicates 从写算子的扫描子树上收集全部过滤条件
func collectPredicates(plan *PhysicalPlan) []expression.Expr {
	var out []expression.Expr
	var walk func(p *PhysicalPlan)
	walk = func(p *PhysicalPlan) {
		switch config := p.Config.(type) {
		case *FilterConfig:
			out = append(out, config.Predicate)
		case *TableScanConfig:
			out = append(out, config.Filters...)
		}
		for _, child := range p.Children {
			walk(child)
		}
	}
	for _, child := range plan.Children {
		walk(child)
	}
	return out
}

// Execute 驱动物理计划：构建算子、Init、循环 Next 收集全部输出
func Execute(ctx *ExecutionContext, plan *PhysicalPlan) ([]*types.Tuple, *types.Schema, error) {
	op, err := BuildOperator(plan)
	if err != nil {
		return nil, nil, err
	}
	if err := op.Init(ctx); err != nil {
		return nil, nil, err
	}
	rows := make([]*types.Tuple, 0, 16)
	for {
		tuple, err := op.Next(ctx)
		if err != nil {
			return nil, nil, err
		}
		if tuple == nil {
			break
		}
		rows = append(rows, tuple)
	}
	return rows, op.Schema(), nil
}
