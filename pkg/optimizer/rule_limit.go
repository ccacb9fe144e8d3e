package optimizer

import (
	"github.com/kasuganosora/pagedb/pkg/planner"
)

func isLimit(plan planner.LogicalPlan) bool {
	_, ok := plan.(*planner.LogicalLimit)
	return ok
}

func isProject(plan planner.LogicalPlan) bool {
	_, ok := plan.(*planner.LogicalProject)
	return ok
}

func isTableScan(plan planner.LogicalPlan) bool {
	_, ok := plan.(*planner.LogicalTableScan)
	return ok
}

func offsetOf(limit *planner.LogicalLimit) int64 {
	if limit.Offset == nil {
		return 0
	}
	return *limit.Offset
}

// EliminateLimit 删除空的 Limit 节点
type EliminateLimit struct{}

// Name 返回规则名称
func (r *EliminateLimit) Name() string {
	return "EliminateLimit"
}

// Pattern 返回匹配模式
func (r *EliminateLimit) Pattern() *Pattern {
	return &Pattern{
		Predicate: func(p planner.LogicalPlan) bool {
			limit, ok := p.(*planner.LogicalLimit)
			return ok && limit.Limit == nil && limit.Offset == nil
		},
	}
}

// Apply 应用规则
func (r *EliminateLimit) Apply(id HepNodeID, g *HepGraph) (bool, error) {
	if err := g.RemoveNode(id); err != nil {
		return false, err
	}
	return true, nil
}

// MergeLimit 合并相邻的 Limit 节点
type MergeLimit struct{}

// Name 返回规则名称
func (r *MergeLimit) Name() string {
	return "MergeLimit"
}

// Pattern 返回匹配模式
func (r *MergeLimit) Pattern() *Pattern {
	return &Pattern{
		Predicate: isLimit,
		Children:  []*Pattern{{Predicate: isLimit}},
	}
}

// Apply 应用规则。内层 Limit 先作用，因此合并后的偏移相加，
// 行数上限取外层上限与内层剩余量的较小者。
func (r *MergeLimit) Apply(id HepNodeID, g *HepGraph) (bool, error) {
	outer := g.Operator(id).(*planner.LogicalLimit)
	innerID := g.Children(id)[0]
	inner := g.Operator(innerID).(*planner.LogicalLimit)

	offset := offsetOf(inner) + offsetOf(outer)

	var limit *int64
	if inner.Limit != nil {
		remain := *inner.Limit - offsetOf(outer)
		if remain < 0 {
			remain = 0
		}
		limit = &remain
	}
	if outer.Limit != nil && (limit == nil || *outer.Limit < *limit) {
		v := *outer.Limit
		limit = &v
	}

	outer.Limit = limit
	outer.Offset = nil
	if offset > 0 {
		outer.Offset = &offset
	}
	if err := g.RemoveNode(innerID); err != nil {
		return false, err
	}
	return true, nil
}

// PushDownLimit 将 Limit 下推穿过 Project
type PushDownLimit struct{}

// Name 返回规则名称
func (r *PushDownLimit) Name() string {
	return "PushDownLimit"
}

// Pattern 返回匹配模式
func (r *PushDownLimit) Pattern() *Pattern {
	return &Pattern{
		Predicate: isLimit,
		Children:  []*Pattern{{Predicate: isProject}},
	}
}

// Apply 应用规则
func (r *PushDownLimit) Apply(id HepNodeID, g *HepGraph) (bool, error) {
	if err := g.SwapWithChild(id); err != nil {
		return false, err
	}
	return true, nil
}

// PushLimitIntoScan 将 Limit 折叠进下层 TableScan 的行数上限
type PushLimitIntoScan struct{}

// Name 返回规则名称
func (r *PushLimitIntoScan) Name() string {
	return "PushLimitIntoScan"
}

// Pattern 返回匹配模式
func (r *PushLimitIntoScan) Pattern() *Pattern {
	return &Pattern{
		Predicate: func(p planner.LogicalPlan) bool {
			limit, ok := p.(*planner.LogicalLimit)
			return ok && limit.Limit != nil
		},
		Children: []*Pattern{{Predicate: isTableScan}},
	}
}

// Apply 应用规则。扫描需要产出 offset+limit 行；偏移为零时
// Limit 节点本身也被摘除。
func (r *PushLimitIntoScan) Apply(id HepNodeID, g *HepGraph) (bool, error) {
	limit := g.Operator(id).(*planner.LogicalLimit)
	scan := g.Operator(g.Children(id)[0]).(*planner.LogicalTableScan)

	total := uint64(*limit.Limit + offsetOf(limit))
	if scan.Limit != nil && *scan.Limit <= total {
		// 已折叠过，保持不动点
		return false, nil
	}
	scan.Limit = &total

	if offsetOf(limit) == 0 {
		if err := g.RemoveNode(id); err != nil {
			return false, err
		}
	}
	return true, nil
}
