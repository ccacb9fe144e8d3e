package optimizer

import (
	"github.com/kasuganosora/pagedb/pkg/planner"
)

// Pattern 规则匹配模式：节点谓词加可选的子模式
type Pattern struct {
	Predicate func(planner.LogicalPlan) bool
	Children  []*Pattern
}

// MatchPattern 从指定节点开始测试模式
func MatchPattern(g *HepGraph, id HepNodeID, pattern *Pattern) bool {
	op := g.Operator(id)
	if op == nil || !pattern.Predicate(op) {
		return false
	}
	children := g.Children(id)
	if len(pattern.Children) > len(children) {
		return false
	}
	for i, childPattern := range pattern.Children {
		if !MatchPattern(g, children[i], childPattern) {
			return false
		}
	}
	return true
}

// Rule 计划改写规则
type Rule interface {
	// Name 返回规则名称
	Name() string
	// Pattern 返回匹配模式
	Pattern() *Pattern
	// Apply 在匹配的节点上改写图，返回是否发生变更
	Apply(id HepNodeID, g *HepGraph) (bool, error)
}

// HepMatchOrder 遍历方向
type HepMatchOrder int

const (
	// TopDown 自根向下匹配
	TopDown HepMatchOrder = iota
	// BottomUp 自叶向上匹配
	BottomUp
)

// HepBatchStrategy 批次策略
type HepBatchStrategy struct {
	MaxIteration int
	MatchOrder   HepMatchOrder
}

// HepBatch 一批按同一策略驱动的规则
type HepBatch struct {
	Name     string
	Strategy HepBatchStrategy
	Rules    []Rule
}

// HepOptimizer 启发式优化器：按序执行规则批次，每批驱动至不动点
type HepOptimizer struct {
	batches []HepBatch
}

// NewHepOptimizer 创建携带内建规则批次的优化器
func NewHepOptimizer() *HepOptimizer {
	return &HepOptimizer{
		batches: []HepBatch{
			{
				Name:     "limit_pushdown",
				Strategy: HepBatchStrategy{MaxIteration: 10, MatchOrder: TopDown},
				Rules: []Rule{
					&EliminateLimit{},
					&MergeLimit{},
					&PushDownLimit{},
					&PushLimitIntoScan{},
				},
			},
		},
	}
}

// NewHepOptimizerWithBatches 创建自定义批次的优化器
func NewHepOptimizerWithBatches(batches []HepBatch) *HepOptimizer {
	return &HepOptimizer{batches: batches}
}

// Optimize 优化逻辑计划
func (o *HepOptimizer) Optimize(plan planner.LogicalPlan) (planner.LogicalPlan, error) {
	g := NewHepGraph(plan)
	for _, batch := range o.batches {
		if err := o.runBatch(g, batch); err != nil {
			return nil, err
		}
	}
	return g.ExtractPlan(), nil
}

// runBatch 驱动一个批次直到不动点或迭代上限
func (o *HepOptimizer) runBatch(g *HepGraph, batch HepBatch) error {
	for iter := 0; iter < batch.Strategy.MaxIteration; iter++ {
		var ids []HepNodeID
		if batch.Strategy.MatchOrder == TopDown {
			ids = g.NodeIDsTopDown()
		} else {
			ids = g.NodeIDsBottomUp()
		}

		changed := false
		for _, id := range ids {
			// 本轮较早的改写可能已摘除该节点
			if !g.Exists(id) {
				continue
			}
			for _, rule := range batch.Rules {
				if !MatchPattern(g, id, rule.Pattern()) {
					continue
				}
				applied, err := rule.Apply(id, g)
				if err != nil {
					return err
				}
				if applied {
					changed = true
				}
				if !g.Exists(id) {
					break
				}
			}
		}
		if !changed {
			break
		}
	}
	return nil
}
