package parser

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/opcode"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
	"github.com/spf13/cast"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// SQLAdapter SQL 解析适配器，将 TiDB AST 转换为内部语句模型
type SQLAdapter struct {
	parser *parser.Parser
}

// NewSQLAdapter 创建 SQL 适配器
func NewSQLAdapter() *SQLAdapter {
	return &SQLAdapter{parser: parser.New()}
}

// Parse 解析 SQL 文本，返回语句序列
func (a *SQLAdapter) Parse(sql string) ([]*Statement, error) {
	stmtNodes, _, err := a.parser.Parse(sql, "", "")
	if err != nil {
		return nil, fmt.Errorf("parse SQL failed: %w", err)
	}
	if len(stmtNodes) == 0 {
		return nil, fmt.Errorf("no statements found")
	}

	statements := make([]*Statement, 0, len(stmtNodes))
	for _, node := range stmtNodes {
		stmt, err := a.convertToStatement(node)
		if err != nil {
			return nil, err
		}
		stmt.RawSQL = node.Text()
		statements = append(statements, stmt)
	}
	return statements, nil
}

// convertToStatement 将 AST 节点转换为内部语句
func (a *SQLAdapter) convertToStatement(node ast.StmtNode) (*Statement, error) {
	switch n := node.(type) {
	case *ast.SelectStmt:
		sel, err := a.convertSelectStmt(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Type: StatementSelect, Select: sel}, nil
	case *ast.InsertStmt:
		ins, err := a.convertInsertStmt(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Type: StatementInsert, Insert: ins}, nil
	case *ast.UpdateStmt:
		upd, err := a.convertUpdateStmt(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Type: StatementUpdate, Update: upd}, nil
	case *ast.DeleteStmt:
		del, err := a.convertDeleteStmt(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Type: StatementDelete, Delete: del}, nil
	case *ast.CreateTableStmt:
		ct, err := a.convertCreateTableStmt(n)
		if err != nil {
			return nil, err
		}
		return &Statement{Type: StatementCreateTable, CreateTable: ct}, nil
	default:
		return nil, fmt.Errorf("statement %T: %w", node, ErrNotSupport)
	}
}

// convertSelectStmt 转换 SELECT 语句
func (a *SQLAdapter) convertSelectStmt(stmt *ast.SelectStmt) (*SelectStatement, error) {
	sel := &SelectStatement{}

	if stmt.Distinct {
		return nil, fmt.Errorf("SELECT DISTINCT: %w", ErrNotSupport)
	}

	for _, field := range stmt.Fields.Fields {
		if field.WildCard != nil {
			sel.Columns = append(sel.Columns, SelectColumn{
				Star:      true,
				StarTable: field.WildCard.Table.String(),
			})
			continue
		}
		expr, err := a.convertExpression(field.Expr)
		if err != nil {
			return nil, err
		}
		sel.Columns = append(sel.Columns, SelectColumn{
			Expr:  expr,
			Alias: field.AsName.String(),
		})
	}

	if stmt.From != nil {
		from, joins, err := a.convertTableRefs(stmt.From.TableRefs)
		if err != nil {
			return nil, err
		}
		sel.From = from
		sel.Joins = joins
	}

	if stmt.Where != nil {
		where, err := a.convertExpression(stmt.Where)
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}

	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			expr, err := a.convertExpression(item.Expr)
			if err != nil {
				return nil, err
			}
			sel.OrderBy = append(sel.OrderBy, OrderByItem{Expr: expr, Desc: item.Desc})
		}
	}

	if stmt.Limit != nil {
		limit, offset, err := a.convertLimit(stmt.Limit)
		if err != nil {
			return nil, err
		}
		sel.Limit, sel.Offset = limit, offset
	}

	return sel, nil
}

// convertLimit 提取 LIMIT 与 OFFSET 常量
func (a *SQLAdapter) convertLimit(limit *ast.Limit) (count, offset *int64, err error) {
	if limit.Count != nil {
		valExpr, ok := limit.Count.(ast.ValueExpr)
		if !ok {
			return nil, nil, fmt.Errorf("non-constant LIMIT: %w", ErrNotSupport)
		}
		n, err := cast.ToInt64E(valExpr.GetValue())
		if err != nil {
			return nil, nil, fmt.Errorf("LIMIT value: %w", err)
		}
		count = &n
	}
	if limit.Offset != nil {
		valExpr, ok := limit.Offset.(ast.ValueExpr)
		if !ok {
			return nil, nil, fmt.Errorf("non-constant OFFSET: %w", ErrNotSupport)
		}
		n, err := cast.ToInt64E(valExpr.GetValue())
		if err != nil {
			return nil, nil, fmt.Errorf("OFFSET value: %w", err)
		}
		offset = &n
	}
	return count, offset, nil
}

// convertTableRefs 展开 FROM 子树：最左表 + 连接序列
func (a *SQLAdapter) convertTableRefs(node ast.ResultSetNode) (string, []JoinInfo, error) {
	switch n := node.(type) {
	case *ast.Join:
		if n.Right == nil {
			return a.convertTableRefs(n.Left)
		}
		from, joins, err := a.convertTableRefs(n.Left)
		if err != nil {
			return "", nil, err
		}
		right, err := tableSourceName(n.Right)
		if err != nil {
			return "", nil, err
		}
		join := JoinInfo{Table: right}
		switch n.Tp {
		case ast.LeftJoin:
			join.Type = "LEFT"
		case ast.RightJoin:
			join.Type = "RIGHT"
		default:
			if n.On != nil {
				join.Type = "INNER"
			} else {
				join.Type = "CROSS"
			}
		}
		if n.On != nil {
			on, err := a.convertExpression(n.On.Expr)
			if err != nil {
				return "", nil, err
			}
			join.On = on
		}
		return from, append(joins, join), nil
	case *ast.TableSource:
		name, err := tableSourceName(n)
		if err != nil {
			return "", nil, err
		}
		return name, nil, nil
	default:
		return "", nil, fmt.Errorf("table reference %T: %w", node, ErrNotSupport)
	}
}

func tableSourceName(node ast.ResultSetNode) (string, error) {
	source, ok := node.(*ast.TableSource)
	if !ok {
		return "", fmt.Errorf("table source %T: %w", node, ErrNotSupport)
	}
	name, ok := source.Source.(*ast.TableName)
	if !ok {
		return "", fmt.Errorf("derived table: %w", ErrNotSupport)
	}
	if source.AsName.String() != "" {
		return "", fmt.Errorf("table alias: %w", ErrNotSupport)
	}
	return name.Name.String(), nil
}

// convertInsertStmt 转换 INSERT 语句
func (a *SQLAdapter) convertInsertStmt(stmt *ast.InsertStmt) (*InsertStatement, error) {
	if stmt.Select != nil {
		return nil, fmt.Errorf("INSERT ... SELECT: %w", ErrNotSupport)
	}
	ins := &InsertStatement{}

	if join, ok := stmt.Table.TableRefs.Left.(*ast.TableSource); ok {
		if tableName, ok := join.Source.(*ast.TableName); ok {
			ins.Table = tableName.Name.String()
		}
	}
	if ins.Table == "" {
		return nil, fmt.Errorf("INSERT has no target table")
	}

	for _, col := range stmt.Columns {
		ins.Columns = append(ins.Columns, col.Name.String())
	}

	for _, row := range stmt.Lists {
		exprs := make([]*Expression, 0, len(row))
		for _, item := range row {
			expr, err := a.convertExpression(item)
			if err != nil {
				return nil, err
			}
			exprs = append(exprs, expr)
		}
		ins.Values = append(ins.Values, exprs)
	}
	if len(ins.Values) == 0 {
		return nil, fmt.Errorf("INSERT without VALUES: %w", ErrNotSupport)
	}
	return ins, nil
}

// convertUpdateStmt 转换 UPDATE 语句
func (a *SQLAdapter) convertUpdateStmt(stmt *ast.UpdateStmt) (*UpdateStatement, error) {
	upd := &UpdateStatement{}

	if source, ok := stmt.TableRefs.TableRefs.Left.(*ast.TableSource); ok {
		if tableName, ok := source.Source.(*ast.TableName); ok {
			upd.Table = tableName.Name.String()
		}
	}
	if upd.Table == "" {
		return nil, fmt.Errorf("multi-table UPDATE: %w", ErrNotSupport)
	}

	for _, item := range stmt.List {
		value, err := a.convertExpression(item.Expr)
		if err != nil {
			return nil, err
		}
		upd.Assignments = append(upd.Assignments, Assignment{
			Column: item.Column.Name.String(),
			Value:  value,
		})
	}

	if stmt.Where != nil {
		where, err := a.convertExpression(stmt.Where)
		if err != nil {
			return nil, err
		}
		upd.Where = where
	}
	return upd, nil
}

// convertDeleteStmt 转换 DELETE 语句
func (a *SQLAdapter) convertDeleteStmt(stmt *ast.DeleteStmt) (*DeleteStatement, error) {
	del := &DeleteStatement{}

	if source, ok := stmt.TableRefs.TableRefs.Left.(*ast.TableSource); ok {
		if tableName, ok := source.Source.(*ast.TableName); ok {
			del.Table = tableName.Name.String()
		}
	}
	if del.Table == "" {
		return nil, fmt.Errorf("multi-table DELETE: %w", ErrNotSupport)
	}

	if stmt.Where != nil {
		where, err := a.convertExpression(stmt.Where)
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

// convertCreateTableStmt 转换 CREATE TABLE 语句
func (a *SQLAdapter) convertCreateTableStmt(stmt *ast.CreateTableStmt) (*CreateTableStatement, error) {
	ct := &CreateTableStatement{Table: stmt.Table.Name.String()}

	for _, col := range stmt.Cols {
		dataType, err := convertFieldType(col.Tp.String())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name.Name.String(), err)
		}
		def := ColumnDef{
			Name:     col.Name.Name.String(),
			Type:     dataType,
			Nullable: true,
		}
		for _, opt := range col.Options {
			switch opt.Tp {
			case ast.ColumnOptionNotNull, ast.ColumnOptionPrimaryKey:
				def.Nullable = false
			case ast.ColumnOptionDefaultValue:
				if opt.Expr != nil {
					expr, err := a.convertExpression(opt.Expr)
					if err != nil {
						return nil, err
					}
					def.Default = expr
				}
			}
		}
		ct.Columns = append(ct.Columns, def)
	}
	return ct, nil
}

// convertFieldType 将 TiDB 字段类型名映射到内部数据类型
func convertFieldType(fullType string) (types.DataType, error) {
	name := strings.ToLower(fullType)
	if idx := strings.Index(name, "("); idx != -1 {
		// tinyint(1) 是布尔的惯用写法
		if name[:idx] == "tinyint" && strings.HasPrefix(name[idx:], "(1)") {
			return types.TypeBoolean, nil
		}
		name = name[:idx]
	}
	name = strings.TrimSpace(strings.TrimSuffix(name, " unsigned"))
	switch name {
	case "tinyint":
		return types.TypeInt8, nil
	case "smallint":
		return types.TypeInt16, nil
	case "int", "integer", "mediumint":
		return types.TypeInt32, nil
	case "bigint":
		return types.TypeInt64, nil
	case "float", "double", "decimal":
		return types.TypeFloat64, nil
	case "varchar", "char", "text", "tinytext", "mediumtext", "longtext":
		return types.TypeVarchar, nil
	case "bool", "boolean":
		return types.TypeBoolean, nil
	default:
		return types.TypeInvalid, fmt.Errorf("column type %s: %w", fullType, ErrNotSupport)
	}
}

// convertExpression 转换 AST 表达式
func (a *SQLAdapter) convertExpression(node ast.ExprNode) (*Expression, error) {
	switch n := node.(type) {
	case *ast.BinaryOperationExpr:
		op, err := convertOpcode(n.Op)
		if err != nil {
			return nil, err
		}
		left, err := a.convertExpression(n.L)
		if err != nil {
			return nil, err
		}
		right, err := a.convertExpression(n.R)
		if err != nil {
			return nil, err
		}
		return &Expression{Type: ExprTypeOperator, Operator: op, Left: left, Right: right}, nil

	case *ast.UnaryOperationExpr:
		child, err := a.convertExpression(n.V)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case opcode.Not, opcode.Not2:
			return &Expression{Type: ExprTypeNot, Child: child}, nil
		case opcode.Minus:
			zero := &Expression{Type: ExprTypeValue, Value: types.NewInt64Value(0)}
			return &Expression{Type: ExprTypeOperator, Operator: "-", Left: zero, Right: child}, nil
		case opcode.Plus:
			return child, nil
		default:
			return nil, fmt.Errorf("unary operator %s: %w", n.Op, ErrNotSupport)
		}

	case *ast.ColumnNameExpr:
		return &Expression{
			Type:   ExprTypeColumn,
			Table:  n.Name.Table.String(),
			Column: n.Name.Name.String(),
		}, nil

	case ast.ValueExpr:
		value, err := convertLiteral(n.GetValue())
		if err != nil {
			return nil, err
		}
		return &Expression{Type: ExprTypeValue, Value: value}, nil

	case *ast.ParenthesesExpr:
		return a.convertExpression(n.Expr)

	case *ast.FuncCastExpr:
		dataType, err := convertFieldType(n.Tp.String())
		if err != nil {
			return nil, err
		}
		child, err := a.convertExpression(n.Expr)
		if err != nil {
			return nil, err
		}
		return &Expression{Type: ExprTypeCast, CastType: dataType, Child: child}, nil

	case *ast.AggregateFuncExpr:
		expr := &Expression{Type: ExprTypeAggregate, Func: strings.ToUpper(n.F)}
		if len(n.Args) == 1 {
			child, err := a.convertExpression(n.Args[0])
			if err != nil {
				return nil, err
			}
			expr.Child = child
		}
		return expr, nil

	default:
		return nil, fmt.Errorf("expression %T: %w", node, ErrNotSupport)
	}
}

// convertOpcode 映射二元运算符
func convertOpcode(op opcode.Op) (string, error) {
	switch op {
	case opcode.EQ:
		return "=", nil
	case opcode.NE:
		return "!=", nil
	case opcode.LT:
		return "<", nil
	case opcode.LE:
		return "<=", nil
	case opcode.GT:
		return ">", nil
	case opcode.GE:
		return ">=", nil
	case opcode.LogicAnd:
		return "AND", nil
	case opcode.LogicOr:
		return "OR", nil
	case opcode.Plus:
		return "+", nil
	case opcode.Minus:
		return "-", nil
	case opcode.Mul:
		return "*", nil
	case opcode.Div:
		return "/", nil
	default:
		return "", fmt.Errorf("operator %s: %w", op, ErrNotSupport)
	}
}

// convertLiteral 将 test_driver 的字面量值转换为内部标量
func convertLiteral(v interface{}) (types.Value, error) {
	switch x := v.(type) {
	case nil:
		return types.Value{Type: types.TypeInvalid, Null: true}, nil
	case bool:
		return types.NewBooleanValue(x), nil
	case int64:
		return types.NewInt64Value(x), nil
	case uint64:
		n, err := cast.ToInt64E(x)
		if err != nil {
			return types.Value{}, fmt.Errorf("integer literal out of range: %w", err)
		}
		return types.NewInt64Value(n), nil
	case float64:
		return types.NewFloat64Value(x), nil
	case string:
		return types.NewVarcharValue(x), nil
	default:
		// 小数等其余字面量统一走数值转换
		f, err := cast.ToFloat64E(fmt.Sprintf("%v", x))
		if err != nil {
			return types.Value{}, fmt.Errorf("literal %T: %w", v, ErrNotSupport)
		}
		return types.NewFloat64Value(f), nil
	}
}
