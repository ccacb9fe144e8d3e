package parser

import (
	"errors"

	"github.com/kasuganosora/pagedb/pkg/types"
)

// ErrNotSupport 语法可识别但尚未支持
var ErrNotSupport = errors.New("not supported")

// StatementType SQL 语句类型
type StatementType string

const (
	StatementSelect      StatementType = "SELECT"
	StatementInsert      StatementType = "INSERT"
	StatementUpdate      StatementType = "UPDATE"
	StatementDelete      StatementType = "DELETE"
	StatementCreateTable StatementType = "CREATE TABLE"
)

// Statement 解析后的 SQL 语句
type Statement struct {
	Type        StatementType
	RawSQL      string
	Select      *SelectStatement
	Insert      *InsertStatement
	Update      *UpdateStatement
	Delete      *DeleteStatement
	CreateTable *CreateTableStatement
}

// SelectColumn SELECT 输出列。Star 表示 `*` 或 `t.*`。
type SelectColumn struct {
	Expr      *Expression
	Alias     string
	Star      bool
	StarTable string
}

// JoinInfo 连接信息
type JoinInfo struct {
	Type  string // INNER, LEFT, RIGHT, CROSS
	Table string
	On    *Expression
}

// OrderByItem 排序项
type OrderByItem struct {
	Expr *Expression
	Desc bool
}

// SelectStatement SELECT 语句。From 为空表示无数据源的表达式查询。
type SelectStatement struct {
	Columns []SelectColumn
	From    string
	Joins   []JoinInfo
	Where   *Expression
	OrderBy []OrderByItem
	Limit   *int64
	Offset  *int64
}

// InsertStatement INSERT 语句
type InsertStatement struct {
	Table   string
	Columns []string
	Values  [][]*Expression
}

// Assignment UPDATE 的赋值项
type Assignment struct {
	Column string
	Value  *Expression
}

// UpdateStatement UPDATE 语句
type UpdateStatement struct {
	Table       string
	Assignments []Assignment
	Where       *Expression
}

// DeleteStatement DELETE 语句
type DeleteStatement struct {
	Table string
	Where *Expression
}

// ColumnDef 建表列定义
type ColumnDef struct {
	Name     string
	Type     types.DataType
	Nullable bool
	Default  *Expression
}

// CreateTableStatement CREATE TABLE 语句
type CreateTableStatement struct {
	Table   string
	Columns []ColumnDef
}

// ExprType 表达式节点类型
type ExprType string

const (
	ExprTypeColumn    ExprType = "COLUMN"
	ExprTypeValue     ExprType = "VALUE"
	ExprTypeOperator  ExprType = "OPERATOR"
	ExprTypeNot       ExprType = "NOT"
	ExprTypeCast      ExprType = "CAST"
	ExprTypeAggregate ExprType = "AGGREGATE"
)

// Expression 解析得到的表达式树
type Expression struct {
	Type     ExprType
	Table    string
	Column   string
	Value    types.Value
	Operator string
	CastType types.DataType
	Func     string
	Left     *Expression
	Right    *Expression
	Child    *Expression
}
