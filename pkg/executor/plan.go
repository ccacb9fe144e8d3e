package executor

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/planner"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// PlanType 物理算子类型
type PlanType string

const (
	TypeCreateTable    PlanType = "CreateTable"
	TypeInsert         PlanType = "Insert"
	TypeValues         PlanType = "Values"
	TypeTableScan      PlanType = "TableScan"
	TypeFilter         PlanType = "Filter"
	TypeProject        PlanType = "Project"
	TypeLimit          PlanType = "Limit"
	TypeSort           PlanType = "Sort"
	TypeNestedLoopJoin PlanType = "NestedLoopJoin"
	TypeUpdate         PlanType = "Update"
	TypeDelete         PlanType = "Delete"
	TypeEmptyRelation  PlanType = "EmptyRelation"
)

// PhysicalPlan 物理计划节点：类型、预计算的输出列、子计划与配置
type PhysicalPlan struct {
	Type         PlanType
	OutputSchema *types.Schema
	Children     []*PhysicalPlan
	Config       interface{}
}

// Explain 返回计划的说明
func (p *PhysicalPlan) Explain() string {
	return string(p.Type)
}

// CreateTableConfig 建表配置
type CreateTableConfig struct {
	Name        string
	TableSchema *types.Schema
}

// ValuesConfig 常量行配置
type ValuesConfig struct {
	Rows [][]expression.Expr
}

// InsertConfig 插入配置
type InsertConfig struct {
	Table string
}

// TableScanConfig 扫描配置
type TableScanConfig struct {
	Table   string
	Filters []expression.Expr
	Limit   *uint64
}

// FilterConfig 过滤配置
type FilterConfig struct {
	Predicate expression.Expr
}

// ProjectConfig 投影配置
type ProjectConfig struct {
	Exprs []expression.Expr
}

// LimitConfig 行数限制配置
type LimitConfig struct {
	Limit  *int64
	Offset *int64
}

// SortConfig 排序配置
type SortConfig struct {
	Keys []planner.SortKey
}

// JoinConfig 连接配置，Cross 连接无条件
type JoinConfig struct {
	JoinType  planner.JoinType
	Condition expression.Expr
}

// UpdateConfig 更新配置
type UpdateConfig struct {
	Table       string
	Assignments []planner.UpdateAssignment
}

// DeleteConfig 删除配置
type DeleteConfig struct {
	Table string
}

// EmptyRelationConfig 空关系配置
type EmptyRelationConfig struct {
	ProduceOneRow bool
}

// Translate 将逻辑计划逐节点映射为物理计划
func Translate(plan planner.LogicalPlan) (*PhysicalPlan, error) {
	children := make([]*PhysicalPlan, 0, len(plan.Children()))
	for _, child := range plan.Children() {
		translated, err := Translate(child)
		if err != nil {
			return nil, err
		}
		children = append(children, translated)
	}

	node := &PhysicalPlan{OutputSchema: plan.Schema(), Children: children}
	switch p := plan.(type) {
	case *planner.LogicalCreateTable:
		node.Type = TypeCreateTable
		node.Config = &CreateTableConfig{Name: p.Name, TableSchema: p.TableSchema}
	case *planner.LogicalValues:
		node.Type = TypeValues
		node.Config = &ValuesConfig{Rows: p.Rows}
	case *planner.LogicalInsert:
		node.Type = TypeInsert
		node.Config = &InsertConfig{Table: p.Table}
	case *planner.LogicalTableScan:
		node.Type = TypeTableScan
		node.Config = &TableScanConfig{Table: p.Table, Filters: p.Filters, Limit: p.Limit}
	case *planner.LogicalFilter:
		node.Type = TypeFilter
		node.Config = &FilterConfig{Predicate: p.Predicate}
	case *planner.LogicalProject:
		node.Type = TypeProject
		node.Config = &ProjectConfig{Exprs: p.Exprs}
	case *planner.LogicalLimit:
		node.Type = TypeLimit
		node.Config = &LimitConfig{Limit: p.Limit, Offset: p.Offset}
	case *planner.LogicalSort:
		node.Type = TypeSort
		node.Config = &SortConfig{Keys: p.Keys}
	case *planner.LogicalJoin:
		node.Type = TypeNestedLoopJoin
		node.Config = &JoinConfig{JoinType: p.JoinType, Condition: p.Condition}
	case *planner.LogicalUpdate:
		node.Type = TypeUpdate
		node.Config = &UpdateConfig{Table: p.Table, Assignments: p.Assignments}
	case *planner.LogicalDelete:
		node.Type = TypeDelete
		node.Config = &DeleteConfig{Table: p.Table}
	case *planner.LogicalEmptyRelation:
		node.Type = TypeEmptyRelation
		node.Config = &EmptyRelationConfig{ProduceOneRow: p.ProduceOneRow}
	default:
		return nil, fmt.Errorf("no physical plan for %T", plan)
	}
	return node, nil
}
