package planner

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/pagedb/pkg/catalog"
	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/parser"
	"github.com/kasuganosora/pagedb/pkg/types"
)

// Planner 将解析后的语句翻译为逻辑计划，名称解析依赖目录
type Planner struct {
	catalog *catalog.Catalog
}

// NewPlanner 创建逻辑计划器
func NewPlanner(c *catalog.Catalog) *Planner {
	return &Planner{catalog: c}
}

// Plan 翻译一条语句
func (p *Planner) Plan(stmt *parser.Statement) (LogicalPlan, error) {
	switch stmt.Type {
	case parser.StatementCreateTable:
		return p.planCreateTable(stmt.CreateTable)
	case parser.StatementInsert:
		return p.planInsert(stmt.Insert)
	case parser.StatementSelect:
		return p.planSelect(stmt.Select)
	case parser.StatementUpdate:
		return p.planUpdate(stmt.Update)
	case parser.StatementDelete:
		return p.planDelete(stmt.Delete)
	default:
		return nil, fmt.Errorf("statement %s: %w", stmt.Type, parser.ErrNotSupport)
	}
}

func (p *Planner) planCreateTable(stmt *parser.CreateTableStatement) (LogicalPlan, error) {
	if len(stmt.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", stmt.Table)
	}
	if _, err := p.catalog.GetTable(stmt.Table); err == nil {
		return nil, fmt.Errorf("table %s already exists", stmt.Table)
	}
	seen := make(map[string]bool, len(stmt.Columns))
	columns := make([]types.Column, 0, len(stmt.Columns))
	for _, def := range stmt.Columns {
		name := strings.ToLower(def.Name)
		if seen[name] {
			return nil, fmt.Errorf("duplicate column %s in table %s", name, stmt.Table)
		}
		seen[name] = true

		col := types.NewColumn(name, def.Type, def.Nullable)
		if def.Default != nil {
			value, err := p.constValue(def.Default, def.Type)
			if err != nil {
				return nil, fmt.Errorf("default for column %s: %w", name, err)
			}
			col.Default = value
		}
		columns = append(columns, col)
	}
	return &LogicalCreateTable{
		Name:        strings.ToLower(stmt.Table),
		TableSchema: types.NewSchema(columns),
	}, nil
}

// constValue 求常量表达式的值并转换为目标类型
func (p *Planner) constValue(expr *parser.Expression, target types.DataType) (types.Value, error) {
	bound, err := bindExpression(expr, types.EmptySchema())
	if err != nil {
		return types.Value{}, err
	}
	v, err := bound.Evaluate(types.EmptyTuple())
	if err != nil {
		return types.Value{}, err
	}
	return types.CastValue(v, target)
}

func (p *Planner) planInsert(stmt *parser.InsertStatement) (LogicalPlan, error) {
	info, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}
	schema := info.Schema

	// 目标列映射：缺省为全部列
	targets := make([]int, 0, schema.Len())
	if len(stmt.Columns) == 0 {
		for i := range schema.Columns {
			targets = append(targets, i)
		}
	} else {
		for _, name := range stmt.Columns {
			i, err := schema.FindColumn("", name)
			if err != nil {
				return nil, err
			}
			targets = append(targets, i)
		}
	}

	rows := make([][]expression.Expr, 0, len(stmt.Values))
	for rowIdx, row := range stmt.Values {
		if len(row) != len(targets) {
			return nil, fmt.Errorf("row %d has %d values, want %d", rowIdx, len(row), len(targets))
		}
		provided := make(map[int]expression.Expr, len(row))
		for i, valueExpr := range row {
			col := schema.Columns[targets[i]]
			bound, err := bindExpression(valueExpr, types.EmptySchema())
			if err != nil {
				return nil, err
			}
			provided[targets[i]] = coerceTo(bound, col.Type)
		}
		full := make([]expression.Expr, schema.Len())
		for i, col := range schema.Columns {
			if expr, ok := provided[i]; ok {
				full[i] = expr
			} else {
				full[i] = expression.NewLiteral(col.Default)
			}
		}
		rows = append(rows, full)
	}

	values := &LogicalValues{RowSchema: schema, Rows: rows}
	insert := &LogicalInsert{Table: info.Name}
	insert.SetChildren(values)
	return insert, nil
}

func (p *Planner) planSelect(stmt *parser.SelectStatement) (LogicalPlan, error) {
	var current LogicalPlan

	if stmt.From == "" {
		current = &LogicalEmptyRelation{ProduceOneRow: true}
	} else {
		scan, err := p.planScan(stmt.From)
		if err != nil {
			return nil, err
		}
		current = scan
		for _, join := range stmt.Joins {
			current, err = p.planJoin(current, join)
			if err != nil {
				return nil, err
			}
		}
	}

	if stmt.Where != nil {
		predicate, err := bindExpression(stmt.Where, current.Schema())
		if err != nil {
			return nil, err
		}
		filter := &LogicalFilter{Predicate: predicate}
		filter.SetChildren(current)
		current = filter
	}

	if len(stmt.OrderBy) > 0 {
		keys := make([]SortKey, 0, len(stmt.OrderBy))
		for _, item := range stmt.OrderBy {
			expr, err := bindExpression(item.Expr, current.Schema())
			if err != nil {
				return nil, err
			}
			keys = append(keys, SortKey{Expr: expr, Desc: item.Desc})
		}
		sort := &LogicalSort{Keys: keys}
		sort.SetChildren(current)
		current = sort
	}

	if stmt.Limit != nil || stmt.Offset != nil {
		limit := &LogicalLimit{Limit: stmt.Limit, Offset: stmt.Offset}
		limit.SetChildren(current)
		current = limit
	}

	return p.planProjection(stmt.Columns, current)
}

func (p *Planner) planScan(table string) (*LogicalTableScan, error) {
	info, err := p.catalog.GetTable(table)
	if err != nil {
		return nil, err
	}
	return &LogicalTableScan{Table: info.Name, TableSchema: info.Schema}, nil
}

func (p *Planner) planJoin(left LogicalPlan, join parser.JoinInfo) (LogicalPlan, error) {
	right, err := p.planScan(join.Table)
	if err != nil {
		return nil, err
	}

	var joinType JoinType
	switch join.Type {
	case "INNER":
		joinType = InnerJoin
	case "LEFT":
		joinType = LeftOuterJoin
	case "RIGHT":
		joinType = RightOuterJoin
	case "CROSS":
		joinType = CrossJoin
	default:
		return nil, fmt.Errorf("join type %s: %w", join.Type, parser.ErrNotSupport)
	}

	schema := joinSchema(left.Schema(), right.Schema(), joinType)

	node := &LogicalJoin{JoinType: joinType, OutputSchema: schema}
	if join.On != nil {
		condition, err := bindExpression(join.On, schema)
		if err != nil {
			return nil, err
		}
		node.Condition = condition
	} else if joinType != CrossJoin {
		return nil, fmt.Errorf("%s requires an ON condition", joinType)
	}
	node.SetChildren(left, right)
	return node, nil
}

// joinSchema 拼接连接输出列，外连接被补齐的一侧列变为可空
func joinSchema(left, right *types.Schema, joinType JoinType) *types.Schema {
	columns := make([]types.Column, 0, left.Len()+right.Len())
	for _, c := range left.Columns {
		if joinType == RightOuterJoin || joinType == FullOuterJoin {
			c.Nullable = true
		}
		columns = append(columns, c)
	}
	for _, c := range right.Columns {
		if joinType == LeftOuterJoin || joinType == FullOuterJoin {
			c.Nullable = true
		}
		columns = append(columns, c)
	}
	return types.NewSchema(columns)
}

// planProjection 绑定输出列并展开 `*`
func (p *Planner) planProjection(columns []parser.SelectColumn, child LogicalPlan) (LogicalPlan, error) {
	childSchema := child.Schema()
	exprs := make([]expression.Expr, 0, len(columns))
	outputColumns := make([]types.Column, 0, len(columns))

	for _, sc := range columns {
		if sc.Star {
			matched := false
			for _, col := range childSchema.Columns {
				if sc.StarTable != "" && !strings.EqualFold(col.Table, sc.StarTable) {
					continue
				}
				matched = true
				exprs = append(exprs, expression.NewColumnRef(col.Table, col.Name))
				outputColumns = append(outputColumns, col)
			}
			if !matched {
				if sc.StarTable != "" {
					return nil, fmt.Errorf("table %s not found in FROM clause", sc.StarTable)
				}
				return nil, fmt.Errorf("SELECT * with no input columns")
			}
			continue
		}

		expr, err := bindExpression(sc.Expr, childSchema)
		if err != nil {
			return nil, err
		}
		name := sc.Alias
		if name != "" {
			expr = expression.NewAlias(name, expr)
		}
		col, err := outputColumn(expr, name, childSchema)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		outputColumns = append(outputColumns, col)
	}

	project := &LogicalProject{
		Exprs:        exprs,
		OutputSchema: types.NewSchema(outputColumns),
	}
	project.SetChildren(child)
	return project, nil
}

// outputColumn 推导一个输出表达式的列定义
func outputColumn(expr expression.Expr, alias string, childSchema *types.Schema) (types.Column, error) {
	dataType, err := expr.DataType(childSchema)
	if err != nil {
		return types.Column{}, err
	}
	nullable, err := expr.Nullable(childSchema)
	if err != nil {
		return types.Column{}, err
	}

	col := types.Column{Type: dataType, Nullable: nullable, Default: types.NewNullValue(dataType)}
	switch {
	case alias != "":
		col.Name = alias
	default:
		inner := expr
		if a, ok := inner.(*expression.Alias); ok {
			inner = a.Child
		}
		if ref, ok := inner.(*expression.ColumnRef); ok {
			col.Table = ref.Table
			col.Name = ref.Name
		} else {
			col.Name = expr.String()
		}
	}
	return col, nil
}

func (p *Planner) planUpdate(stmt *parser.UpdateStatement) (LogicalPlan, error) {
	info, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	var child LogicalPlan = &LogicalTableScan{Table: info.Name, TableSchema: info.Schema}
	if stmt.Where != nil {
		predicate, err := bindExpression(stmt.Where, info.Schema)
		if err != nil {
			return nil, err
		}
		filter := &LogicalFilter{Predicate: predicate}
		filter.SetChildren(child)
		child = filter
	}

	assignments := make([]UpdateAssignment, 0, len(stmt.Assignments))
	for _, a := range stmt.Assignments {
		i, err := info.Schema.FindColumn("", a.Column)
		if err != nil {
			return nil, err
		}
		value, err := bindExpression(a.Value, info.Schema)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, UpdateAssignment{
			ColumnIndex: i,
			Value:       coerceTo(value, info.Schema.Columns[i].Type),
		})
	}

	update := &LogicalUpdate{Table: info.Name, Assignments: assignments}
	update.SetChildren(child)
	return update, nil
}

func (p *Planner) planDelete(stmt *parser.DeleteStatement) (LogicalPlan, error) {
	info, err := p.catalog.GetTable(stmt.Table)
	if err != nil {
		return nil, err
	}

	var child LogicalPlan = &LogicalTableScan{Table: info.Name, TableSchema: info.Schema}
	if stmt.Where != nil {
		predicate, err := bindExpression(stmt.Where, info.Schema)
		if err != nil {
			return nil, err
		}
		filter := &LogicalFilter{Predicate: predicate}
		filter.SetChildren(child)
		child = filter
	}

	del := &LogicalDelete{Table: info.Name}
	del.SetChildren(child)
	return del, nil
}

// coerceTo 在类型不保证匹配时包一层转换
func coerceTo(expr expression.Expr, target types.DataType) expression.Expr {
	if lit, ok := expr.(*expression.Literal); ok && lit.Value.Type == target {
		return expr
	}
	return expression.NewCast(target, expr)
}

// bindExpression 将解析表达式绑定到输入 Schema 上
func bindExpression(expr *parser.Expression, schema *types.Schema) (expression.Expr, error) {
	switch expr.Type {
	case parser.ExprTypeValue:
		return expression.NewLiteral(expr.Value), nil

	case parser.ExprTypeColumn:
		if _, err := schema.FindColumn(expr.Table, expr.Column); err != nil {
			return nil, err
		}
		return expression.NewColumnRef(expr.Table, expr.Column), nil

	case parser.ExprTypeOperator:
		op, err := bindOperator(expr.Operator)
		if err != nil {
			return nil, err
		}
		left, err := bindExpression(expr.Left, schema)
		if err != nil {
			return nil, err
		}
		right, err := bindExpression(expr.Right, schema)
		if err != nil {
			return nil, err
		}
		return expression.NewBinaryOp(op, left, right), nil

	case parser.ExprTypeNot:
		child, err := bindExpression(expr.Child, schema)
		if err != nil {
			return nil, err
		}
		return expression.NewNot(child), nil

	case parser.ExprTypeCast:
		child, err := bindExpression(expr.Child, schema)
		if err != nil {
			return nil, err
		}
		return expression.NewCast(expr.CastType, child), nil

	case parser.ExprTypeAggregate:
		return nil, fmt.Errorf("aggregate %s: %w", expr.Func, parser.ErrNotSupport)

	default:
		return nil, fmt.Errorf("expression type %s: %w", expr.Type, parser.ErrNotSupport)
	}
}

func bindOperator(op string) (expression.BinaryOperator, error) {
	switch op {
	case "=":
		return expression.Eq, nil
	case "!=", "<>":
		return expression.NotEq, nil
	case "<":
		return expression.Lt, nil
	case "<=":
		return expression.LtEq, nil
	case ">":
		return expression.Gt, nil
	case ">=":
		return expression.GtEq, nil
	case "AND":
		return expression.And, nil
	case "OR":
		return expression.Or, nil
	case "+":
		return expression.Plus, nil
	case "-":
		return expression.Minus, nil
	case "*":
		return expression.Multiply, nil
	case "/":
		return expression.Divide, nil
	default:
		return 0, fmt.Errorf("operator %s: %w", op, parser.ErrNotSupport)
	}
}
