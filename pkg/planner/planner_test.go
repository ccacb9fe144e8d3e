package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/pagedb/pkg/buffer"
	"github.com/kasuganosora/pagedb/pkg/catalog"
	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/parser"
	"github.com/kasuganosora/pagedb/pkg/storage"
	"github.com/kasuganosora/pagedb/pkg/types"
)

func newTestPlanner(t *testing.T) (*Planner, *catalog.Catalog) {
	t.Helper()
	dm, err := storage.NewDiskManager(filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	pool := buffer.NewBufferPool(16, dm)
	cat, err := catalog.NewCatalog(pool, dm)
	require.NoError(t, err)
	return NewPlanner(cat), cat
}

func plan(t *testing.T, p *Planner, sql string) LogicalPlan {
	t.Helper()
	stmts, err := parser.NewSQLAdapter().Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	logical, err := p.Plan(stmts[0])
	require.NoError(t, err)
	return logical
}

func planErr(t *testing.T, p *Planner, sql string) error {
	t.Helper()
	stmts, err := parser.NewSQLAdapter().Parse(sql)
	require.NoError(t, err)
	_, err = p.Plan(stmts[0])
	require.Error(t, err)
	return err
}

func createUsers(t *testing.T, cat *catalog.Catalog) {
	t.Helper()
	_, err := cat.CreateTable("users", types.NewSchema([]types.Column{
		types.NewColumn("id", types.TypeInt32, false),
		types.NewColumn("age", types.TypeInt32, true),
		types.NewColumn("name", types.TypeVarchar, true),
	}))
	require.NoError(t, err)
}

func TestPlanCreateTable(t *testing.T) {
	p, _ := newTestPlanner(t)

	logical := plan(t, p, "CREATE TABLE t (a INT NOT NULL, b VARCHAR(10))")
	ct, ok := logical.(*LogicalCreateTable)
	require.True(t, ok)
	assert.Equal(t, "t", ct.Name)
	require.Equal(t, 2, ct.TableSchema.Len())
	assert.False(t, ct.TableSchema.Columns[0].Nullable)
	assert.Equal(t, types.TypeVarchar, ct.TableSchema.Columns[1].Type)

	err := planErr(t, p, "CREATE TABLE bad (a INT, a INT)")
	assert.Contains(t, err.Error(), "duplicate column")
}

func TestPlanInsertShape(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "INSERT INTO users VALUES (1, 20, 'ann'), (2, NULL, 'bob')")
	insert, ok := logical.(*LogicalInsert)
	require.True(t, ok)
	assert.Equal(t, "users", insert.Table)

	values, ok := insert.Children()[0].(*LogicalValues)
	require.True(t, ok)
	assert.Len(t, values.Rows, 2)
	assert.Equal(t, 3, len(values.Rows[0]))
	assert.True(t, values.Schema().Equal(insert.Children()[0].Schema()))
}

func TestPlanInsertWithColumnListFillsDefaults(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "INSERT INTO users (id) VALUES (7)")
	values := logical.Children()[0].(*LogicalValues)
	require.Len(t, values.Rows, 1)
	require.Len(t, values.Rows[0], 3)

	// 未指定的列使用缺省值字面量
	v, err := values.Rows[0][1].Evaluate(types.EmptyTuple())
	require.NoError(t, err)
	assert.True(t, v.Null)
}

func TestPlanInsertErrors(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	assert.Error(t, planErr(t, p, "INSERT INTO missing VALUES (1)"))
	assert.Error(t, planErr(t, p, "INSERT INTO users (nope) VALUES (1)"))
	assert.Error(t, planErr(t, p, "INSERT INTO users VALUES (1, 2)"))
}

func TestPlanSelectShape(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "SELECT id FROM users WHERE age > 18 ORDER BY id LIMIT 5")

	project, ok := logical.(*LogicalProject)
	require.True(t, ok)
	limit, ok := project.Children()[0].(*LogicalLimit)
	require.True(t, ok)
	sortNode, ok := limit.Children()[0].(*LogicalSort)
	require.True(t, ok)
	filter, ok := sortNode.Children()[0].(*LogicalFilter)
	require.True(t, ok)
	_, ok = filter.Children()[0].(*LogicalTableScan)
	require.True(t, ok)

	require.Equal(t, 1, project.Schema().Len())
	assert.Equal(t, "id", project.Schema().Columns[0].Name)
	assert.Equal(t, types.TypeInt32, project.Schema().Columns[0].Type)
}

func TestPlanSelectStarExpansion(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "SELECT * FROM users")
	project := logical.(*LogicalProject)
	require.Equal(t, 3, project.Schema().Len())
	assert.Equal(t, "id", project.Schema().Columns[0].Name)
	assert.Equal(t, "users", project.Schema().Columns[0].Table)
}

func TestPlanSelectUnresolvedColumn(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	err := planErr(t, p, "SELECT ghost FROM users")
	assert.Contains(t, err.Error(), "not found")

	assert.Error(t, planErr(t, p, "SELECT id FROM nowhere"))
}

func TestPlanSelectNoFrom(t *testing.T) {
	p, _ := newTestPlanner(t)

	logical := plan(t, p, "SELECT 1 + 2, 3 * 4")
	project := logical.(*LogicalProject)
	empty, ok := project.Children()[0].(*LogicalEmptyRelation)
	require.True(t, ok)
	assert.True(t, empty.ProduceOneRow)
	require.Equal(t, 2, project.Schema().Len())
	assert.Equal(t, types.TypeInt64, project.Schema().Columns[0].Type)
}

func TestPlanJoin(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)
	_, err := cat.CreateTable("orders", types.NewSchema([]types.Column{
		types.NewColumn("user_id", types.TypeInt32, false),
		types.NewColumn("amount", types.TypeInt64, false),
	}))
	require.NoError(t, err)

	logical := plan(t, p, "SELECT users.id, orders.amount FROM users JOIN orders ON users.id = orders.user_id")
	project := logical.(*LogicalProject)
	join, ok := project.Children()[0].(*LogicalJoin)
	require.True(t, ok)
	assert.Equal(t, InnerJoin, join.JoinType)
	require.NotNil(t, join.Condition)
	assert.Equal(t, 5, join.Schema().Len())

	// 两侧同名列的裸引用有歧义
	err = planErr(t, p, "SELECT id FROM users JOIN users ON users.id = users.id")
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestPlanJoinNullability(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)
	_, err := cat.CreateTable("orders", types.NewSchema([]types.Column{
		types.NewColumn("user_id", types.TypeInt32, false),
	}))
	require.NoError(t, err)

	logical := plan(t, p, "SELECT * FROM users LEFT JOIN orders ON users.id = orders.user_id")
	join := logical.Children()[0].(*LogicalJoin)
	cols := join.Schema().Columns
	assert.False(t, cols[0].Nullable, "left side keeps nullability in LEFT JOIN")
	assert.True(t, cols[len(cols)-1].Nullable, "right side becomes nullable in LEFT JOIN")
}

func TestPlanUpdate(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "UPDATE users SET age = age + 1 WHERE id = 3")
	update, ok := logical.(*LogicalUpdate)
	require.True(t, ok)
	require.Len(t, update.Assignments, 1)
	assert.Equal(t, 1, update.Assignments[0].ColumnIndex)
	_, ok = update.Children()[0].(*LogicalFilter)
	require.True(t, ok)

	assert.Error(t, planErr(t, p, "UPDATE users SET ghost = 1"))
}

func TestPlanDelete(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "DELETE FROM users WHERE id = 1")
	del, ok := logical.(*LogicalDelete)
	require.True(t, ok)
	_, ok = del.Children()[0].(*LogicalFilter)
	require.True(t, ok)

	logical = plan(t, p, "DELETE FROM users")
	_, ok = logical.(*LogicalDelete).Children()[0].(*LogicalTableScan)
	require.True(t, ok)
}

func TestPlanAggregateNotSupported(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	err := planErr(t, p, "SELECT COUNT(id) FROM users")
	assert.ErrorIs(t, err, parser.ErrNotSupport)
}

func TestPlanAliasNaming(t *testing.T) {
	p, cat := newTestPlanner(t)
	createUsers(t, cat)

	logical := plan(t, p, "SELECT id AS uid FROM users")
	project := logical.(*LogicalProject)
	assert.Equal(t, "uid", project.Schema().Columns[0].Name)
	_, ok := project.Exprs[0].(*expression.Alias)
	assert.True(t, ok)
}
