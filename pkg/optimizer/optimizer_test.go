package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/pagedb/pkg/expression"
	"github.com/kasuganosora/pagedb/pkg/planner"
	"github.com/kasuganosora/pagedb/pkg/types"
)

func scanNode(table string) *planner.LogicalTableScan {
	return &planner.LogicalTableScan{
		Table: table,
		TableSchema: types.NewSchema([]types.Column{
			{Table: table, Name: "x", Type: types.TypeInt32},
		}),
	}
}

func limitNode(limit, offset *int64, child planner.LogicalPlan) *planner.LogicalLimit {
	node := &planner.LogicalLimit{Limit: limit, Offset: offset}
	node.SetChildren(child)
	return node
}

func projectNode(child planner.LogicalPlan) *planner.LogicalProject {
	node := &planner.LogicalProject{
		Exprs:        []expression.Expr{expression.NewColumnRef("t", "x")},
		OutputSchema: child.Schema(),
	}
	node.SetChildren(child)
	return node
}

func i64(v int64) *int64 { return &v }

func TestGraphRoundTrip(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(i64(3), nil, projectNode(scan))

	g := NewHepGraph(plan)
	assert.Len(t, g.NodeIDsTopDown(), 3)
	assert.Len(t, g.NodeIDsBottomUp(), 3)

	extracted := g.ExtractPlan()
	require.IsType(t, &planner.LogicalLimit{}, extracted)
	require.IsType(t, &planner.LogicalProject{}, extracted.Children()[0])
	require.IsType(t, &planner.LogicalTableScan{}, extracted.Children()[0].Children()[0])
}

func TestGraphRemoveNode(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(nil, nil, projectNode(scan))

	g := NewHepGraph(plan)
	require.NoError(t, g.RemoveNode(g.Root()))

	extracted := g.ExtractPlan()
	require.IsType(t, &planner.LogicalProject{}, extracted)
}

func TestEliminateLimit(t *testing.T) {
	plan := limitNode(nil, nil, projectNode(scanNode("t")))

	optimized, err := NewHepOptimizer().Optimize(plan)
	require.NoError(t, err)
	require.IsType(t, &planner.LogicalProject{}, optimized)
}

func TestMergeLimit(t *testing.T) {
	// Limit(3) over Limit(5 offset 2) over Project: 合并后 offset=2, limit=3
	inner := limitNode(i64(5), i64(2), projectNode(scanNode("t")))
	outer := limitNode(i64(3), nil, inner)

	batches := []HepBatch{{
		Name:     "merge_only",
		Strategy: HepBatchStrategy{MaxIteration: 10, MatchOrder: TopDown},
		Rules:    []Rule{&MergeLimit{}},
	}}
	optimized, err := NewHepOptimizerWithBatches(batches).Optimize(outer)
	require.NoError(t, err)

	merged, ok := optimized.(*planner.LogicalLimit)
	require.True(t, ok)
	require.NotNil(t, merged.Limit)
	assert.Equal(t, int64(3), *merged.Limit)
	require.NotNil(t, merged.Offset)
	assert.Equal(t, int64(2), *merged.Offset)
	require.IsType(t, &planner.LogicalProject{}, merged.Children()[0])
}

func TestMergeLimitOuterOffsetShrinksInnerLimit(t *testing.T) {
	// 内层最多给 5 行，外层再跳过 4 行：只剩 1 行可取
	inner := limitNode(i64(5), nil, projectNode(scanNode("t")))
	outer := limitNode(i64(10), i64(4), inner)

	batches := []HepBatch{{
		Name:     "merge_only",
		Strategy: HepBatchStrategy{MaxIteration: 10, MatchOrder: TopDown},
		Rules:    []Rule{&MergeLimit{}},
	}}
	optimized, err := NewHepOptimizerWithBatches(batches).Optimize(outer)
	require.NoError(t, err)

	merged := optimized.(*planner.LogicalLimit)
	require.NotNil(t, merged.Limit)
	assert.Equal(t, int64(1), *merged.Limit)
	assert.Equal(t, int64(4), *merged.Offset)
}

func TestPushDownLimitThroughProject(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(i64(2), nil, projectNode(scan))

	batches := []HepBatch{{
		Name:     "push_only",
		Strategy: HepBatchStrategy{MaxIteration: 10, MatchOrder: TopDown},
		Rules:    []Rule{&PushDownLimit{}},
	}}
	optimized, err := NewHepOptimizerWithBatches(batches).Optimize(plan)
	require.NoError(t, err)

	require.IsType(t, &planner.LogicalProject{}, optimized)
	require.IsType(t, &planner.LogicalLimit{}, optimized.Children()[0])
	require.IsType(t, &planner.LogicalTableScan{}, optimized.Children()[0].Children()[0])
}

func TestPushLimitIntoScan(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(i64(2), nil, scan)

	optimized, err := NewHepOptimizer().Optimize(plan)
	require.NoError(t, err)

	// offset 为零：Limit 节点消失，上限进入扫描
	result, ok := optimized.(*planner.LogicalTableScan)
	require.True(t, ok)
	require.NotNil(t, result.Limit)
	assert.Equal(t, uint64(2), *result.Limit)
}

func TestPushLimitIntoScanKeepsOffset(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(i64(2), i64(1), scan)

	optimized, err := NewHepOptimizer().Optimize(plan)
	require.NoError(t, err)

	limit, ok := optimized.(*planner.LogicalLimit)
	require.True(t, ok, "offset must keep the Limit node")
	result := limit.Children()[0].(*planner.LogicalTableScan)
	require.NotNil(t, result.Limit)
	assert.Equal(t, uint64(3), *result.Limit, "scan must produce offset+limit rows")
}

func TestFullPipelineLimitOverProjectOverScan(t *testing.T) {
	// Limit(2) → Project → Scan 最终折叠为 Project → Scan(limit=2)
	scan := scanNode("t")
	plan := limitNode(i64(2), nil, projectNode(scan))

	optimized, err := NewHepOptimizer().Optimize(plan)
	require.NoError(t, err)

	project, ok := optimized.(*planner.LogicalProject)
	require.True(t, ok)
	result, ok := project.Children()[0].(*planner.LogicalTableScan)
	require.True(t, ok)
	require.NotNil(t, result.Limit)
	assert.Equal(t, uint64(2), *result.Limit)
}

func TestOptimizeIdempotent(t *testing.T) {
	scan := scanNode("t")
	plan := limitNode(i64(2), i64(1), projectNode(scan))

	opt := NewHepOptimizer()
	once, err := opt.Optimize(plan)
	require.NoError(t, err)
	explained := planner.ExplainTree(once)

	twice, err := NewHepOptimizer().Optimize(once)
	require.NoError(t, err)
	assert.Equal(t, explained, planner.ExplainTree(twice))
}

func TestNonLimitPlanUntouched(t *testing.T) {
	plan := projectNode(scanNode("t"))
	optimized, err := NewHepOptimizer().Optimize(plan)
	require.NoError(t, err)
	assert.Same(t, plan, optimized)
}
