package types

import (
	"fmt"
	"strings"
)

// Column 列定义
type Column struct {
	Table    string
	Name     string
	Type     DataType
	Nullable bool
	Default  Value
}

// NewColumn 创建列
func NewColumn(name string, t DataType, nullable bool) Column {
	return Column{
		Name:     name,
		Type:     t,
		Nullable: nullable,
		Default:  NewNullValue(t),
	}
}

// QualifiedName 返回带表前缀的列名
func (c Column) QualifiedName() string {
	if c.Table == "" {
		return c.Name
	}
	return c.Table + "." + c.Name
}

// Equal 列的结构相等性
func (c Column) Equal(other Column) bool {
	return c.Table == other.Table &&
		c.Name == other.Name &&
		c.Type == other.Type &&
		c.Nullable == other.Nullable
}

// Schema 有序列集合
type Schema struct {
	Columns []Column
}

// NewSchema 创建 Schema
func NewSchema(columns []Column) *Schema {
	return &Schema{Columns: columns}
}

// EmptySchema 创建空 Schema
func EmptySchema() *Schema {
	return &Schema{}
}

// Len 列数
func (s *Schema) Len() int {
	return len(s.Columns)
}

// Equal Schema 的结构相等性
func (s *Schema) Equal(other *Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if !s.Columns[i].Equal(other.Columns[i]) {
			return false
		}
	}
	return true
}

// FindColumn 按限定名查找列下标。table 为空时按裸名匹配，
// 裸名在多个表中出现时报歧义错误。
func (s *Schema) FindColumn(table, name string) (int, error) {
	if table != "" {
		for i, c := range s.Columns {
			if strings.EqualFold(c.Table, table) && strings.EqualFold(c.Name, name) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("column %s.%s not found", table, name)
	}
	found := -1
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			if found >= 0 {
				return 0, fmt.Errorf("column %s is ambiguous", name)
			}
			found = i
		}
	}
	if found < 0 {
		return 0, fmt.Errorf("column %s not found", name)
	}
	return found, nil
}

// Qualify 返回所有列都带上指定表名的新 Schema
func (s *Schema) Qualify(table string) *Schema {
	columns := make([]Column, len(s.Columns))
	for i, c := range s.Columns {
		c.Table = table
		columns[i] = c
	}
	return &Schema{Columns: columns}
}

// Join 拼接两个 Schema（用于连接输出）
func (s *Schema) Join(other *Schema) *Schema {
	columns := make([]Column, 0, len(s.Columns)+len(other.Columns))
	columns = append(columns, s.Columns...)
	columns = append(columns, other.Columns...)
	return &Schema{Columns: columns}
}

// Tuple 一行数据，值序列与 Schema 逐列对应
type Tuple struct {
	Schema *Schema
	Values []Value
}

// NewTuple 创建元组
func NewTuple(schema *Schema, values []Value) (*Tuple, error) {
	if len(values) != len(schema.Columns) {
		return nil, fmt.Errorf("tuple has %d values, schema has %d columns", len(values), len(schema.Columns))
	}
	for i, v := range values {
		if !v.Null && v.Type != schema.Columns[i].Type {
			return nil, fmt.Errorf("value %d has type %s, column %s wants %s",
				i, v.Type, schema.Columns[i].Name, schema.Columns[i].Type)
		}
	}
	return &Tuple{Schema: schema, Values: values}, nil
}

// EmptyTuple 空元组，用于无输入行的表达式求值
func EmptyTuple() *Tuple {
	return &Tuple{Schema: EmptySchema()}
}

// Value 返回第 i 列的值
func (t *Tuple) Value(i int) Value {
	return t.Values[i]
}

// Equal 元组逐列相等
func (t *Tuple) Equal(other *Tuple) bool {
	if len(t.Values) != len(other.Values) {
		return false
	}
	for i := range t.Values {
		if !t.Values[i].Equal(other.Values[i]) {
			return false
		}
	}
	return true
}

// JoinTuple 拼接两行（用于连接输出）
func JoinTuple(schema *Schema, left, right *Tuple) *Tuple {
	values := make([]Value, 0, len(left.Values)+len(right.Values))
	values = append(values, left.Values...)
	values = append(values, right.Values...)
	return &Tuple{Schema: schema, Values: values}
}

// NullTuple 返回指定 Schema 的全空行（外连接补齐用）
func NullTuple(schema *Schema) *Tuple {
	values := make([]Value, len(schema.Columns))
	for i, c := range schema.Columns {
		values[i] = NewNullValue(c.Type)
	}
	return &Tuple{Schema: schema, Values: values}
}
