package planner

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// LogicalPlan 逻辑计划接口
type LogicalPlan interface {
	// Children 获取子节点
	Children() []LogicalPlan

	// SetChildren 设置子节点
	SetChildren(children ...LogicalPlan)

	// Schema 返回输出列
	Schema() *types.Schema

	// Explain 返回计划说明
	Explain() string
}

// JoinType 连接类型
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	CrossJoin
)

// String 返回 JoinType 的字符串表示
func (jt JoinType) String() string {
	switch jt {
	case InnerJoin:
		return "INNER JOIN"
	case LeftOuterJoin:
		return "LEFT OUTER JOIN"
	case RightOuterJoin:
		return "RIGHT OUTER JOIN"
	case FullOuterJoin:
		return "FULL OUTER JOIN"
	case CrossJoin:
		return "CROSS JOIN"
	default:
		return "UNKNOWN"
	}
}

// InsertOutputSchema INSERT 的输出列
var InsertOutputSchema = types.NewSchema([]types.Column{
	{Name: "insert_rows", Type: types.TypeInt32},
})

// UpdateOutputSchema UPDATE 的输出列
var UpdateOutputSchema = types.NewSchema([]types.Column{
	{Name: "update_rows", Type: types.TypeInt32},
})

// DeleteOutputSchema DELETE 的输出列
var DeleteOutputSchema = types.NewSchema([]types.Column{
	{Name: "delete_rows", Type: types.TypeInt32},
})

type baseLogicalPlan struct {
	children []LogicalPlan
}

func (p *baseLogicalPlan) Children() []LogicalPlan {
	return p.children
}

func (p *baseLogicalPlan) SetChildren(children ...LogicalPlan) {
	p.children = children
}

// LogicalCreateTable 建表
type LogicalCreateTable struct {
	baseLogicalPlan
	Name        string
	TableSchema *types.Schema
}

// Schema 返回输出列
func (p *LogicalCreateTable) Schema() *types.Schema {
	return types.EmptySchema()
}

// Explain 返回计划说明
func (p *LogicalCreateTable) Explain() string {
	return fmt.Sprintf("CreateTable(%s)", p.Name)
}

// LogicalValues 常量行集合
type LogicalValues struct {
	baseLogicalPlan
	RowSchema *types.Schema
	Rows      [][]expression.Expr
}

// Schema 返回输出列
func (p *LogicalValues) Schema() *types.Schema {
	return p.RowSchema
}

// Explain 返回计划说明
func (p *LogicalValues) Explain() string {
	return fmt.Sprintf("Values(%d rows)", len(p.Rows))
}

// LogicalInsert 插入
type LogicalInsert struct {
	baseLogicalPlan
	Table string
}

// Schema 返回输出列
func (p *LogicalInsert) Schema() *types.Schema {
	return InsertOutputSchema
}

// Explain 返回计划说明
func (p *LogicalInsert) Explain() string {
	return fmt.Sprintf("Insert(%s)", p.Table)
}

// LogicalTableScan 全表扫描，可携带下推的过滤与行数上限
type LogicalTableScan struct {
	baseLogicalPlan
	Table       string
	TableSchema *types.Schema
	Filters     []expression.Expr
	Limit       *uint64
}

// Schema 返回输出列
func (p *LogicalTableScan) Schema() *types.Schema {
	return p.TableSchema
}

// Explain 返回计划说明
func (p *LogicalTableScan) Explain() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TableScan(%s", p.Table)
	if len(p.Filters) > 0 {
		fmt.Fprintf(&sb, ", filters=%d", len(p.Filters))
	}
	if p.Limit != nil {
		fmt.Fprintf(&sb, ", limit=%d", *p.Limit)
	}
	sb.WriteString(")")
	return sb.String()
}

// LogicalFilter 过滤
type LogicalFilter struct {
	baseLogicalPlan
	Predicate expression.Expr
}

// Schema 返回输出列
func (p *LogicalFilter) Schema() *types.Schema {
	return p.children[0].Schema()
}

// Explain 返回计划说明
func (p *LogicalFilter) Explain() string {
	return fmt.Sprintf("Filter(%s)", p.Predicate)
}

// LogicalProject 投影
type LogicalProject struct {
	baseLogicalPlan
	Exprs        []expression.Expr
	OutputSchema *types.Schema
}

// Schema 返回输出列
func (p *LogicalProject) Schema() *types.Schema {
	return p.OutputSchema
}

// Explain 返回计划说明
func (p *LogicalProject) Explain() string {
	names := make([]string, 0, len(p.Exprs))
	for _, e := range p.Exprs {
		names = append(names, e.String())
	}
	return fmt.Sprintf("Project(%s)", strings.Join(names, ", "))
}

// LogicalLimit 行数限制
type LogicalLimit struct {
	baseLogicalPlan
	Limit  *int64
	Offset *int64
}

// Schema 返回输出列
func (p *LogicalLimit) Schema() *types.Schema {
	return p.children[0].Schema()
}

// Explain 返回计划说明
func (p *LogicalLimit) Explain() string {
	var sb strings.Builder
	sb.WriteString("Limit(")
	if p.Limit != nil {
		fmt.Fprintf(&sb, "limit=%d", *p.Limit)
	}
	if p.Offset != nil {
		if p.Limit != nil {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "offset=%d", *p.Offset)
	}
	sb.WriteString(")")
	return sb.String()
}

// SortKey 排序键
type SortKey struct {
	Expr expression.Expr
	Desc bool
}

// LogicalSort 排序
type LogicalSort struct {
	baseLogicalPlan
	Keys []SortKey
}

// Schema 返回输出列
func (p *LogicalSort) Schema() *types.Schema {
	return p.children[0].Schema()
}

// Explain 返回计划说明
func (p *LogicalSort) Explain() string {
	keys := make([]string, 0, len(p.Keys))
	for _, k := range p.Keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		keys = append(keys, fmt.Sprintf("%s %s", k.Expr, dir))
	}
	return fmt.Sprintf("Sort(%s)", strings.Join(keys, ", "))
}

// LogicalJoin 连接
type LogicalJoin struct {
	baseLogicalPlan
	JoinType     JoinType
	Condition    expression.Expr
	OutputSchema *types.Schema
}

// Schema 返回输出列
func (p *LogicalJoin) Schema() *types.Schema {
	return p.OutputSchema
}

// Explain 返回计划说明
func (p *LogicalJoin) Explain() string {
	if p.Condition == nil {
		return fmt.Sprintf("Join(%s)", p.JoinType)
	}
	return fmt.Sprintf("Join(%s, on=%s)", p.JoinType, p.Condition)
}

// UpdateAssignment UPDATE 赋值：目标列下标与新值表达式
type UpdateAssignment struct {
	ColumnIndex int
	Value       expression.Expr
}

// LogicalUpdate 更新
type LogicalUpdate struct {
	baseLogicalPlan
	Table       string
	Assignments []UpdateAssignment
}

// Schema 返回输出列
func (p *LogicalUpdate) Schema() *types.Schema {
	return UpdateOutputSchema
}

// Explain 返回计划说明
func (p *LogicalUpdate) Explain() string {
	return fmt.Sprintf("Update(%s, %d assignments)", p.Table, len(p.Assignments))
}

// LogicalDelete 删除
type LogicalDelete struct {
	baseLogicalPlan
	Table string
}

// Schema 返回输出列
func (p *LogicalDelete) Schema() *types.Schema {
	return DeleteOutputSchema
}

// Explain 返回计划说明
func (p *LogicalDelete) Explain() string {
	return fmt.Sprintf("Delete(%s)", p.Table)
}

// LogicalEmptyRelation 空关系；ProduceOneRow 时产出一行空元组
type LogicalEmptyRelation struct {
	baseLogicalPlan
	ProduceOneRow bool
}

// Schema 返回输出列
func (p *LogicalEmptyRelation) Schema() *types.Schema {
	return types.EmptySchema()
}

// Explain 返回计划说明
func (p *LogicalEmptyRelation) Explain() string {
	return fmt.Sprintf("EmptyRelation(produceOneRow=%v)", p.ProduceOneRow)
}

// ExplainTree 缩进展示整棵计划树
func ExplainTree(plan LogicalPlan) string {
	var sb strings.Builder
	var walk func(p LogicalPlan, depth int)
	walk = func(p LogicalPlan, depth int) {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(p.Explain())
		sb.WriteString("\n")
		for _, child := range p.Children() {
			walk(child, depth+1)
		}
	}
	walk(plan, 0)
	return sb.String()
}
