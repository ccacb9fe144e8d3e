package optimizer

import (
	"fmt"

	"github.com/kasuganosora/pagedb/pkg/planner"
)

// HepNodeID 图节点号，节点以下标寻址
type HepNodeID int

type hepNode struct {
	plan     planner.LogicalPlan
	children []HepNodeID
}

// HepGraph 以节点号寻址的计划图。节点内容是逻辑算子，
// 边单独维护，算子自带的子指针在图内被忽略。
type HepGraph struct {
	nodes []*hepNode
	root  HepNodeID
}

// NewHepGraph 从逻辑计划树构建图
func NewHepGraph(plan planner.LogicalPlan) *HepGraph {
	g := &HepGraph{}
	g.root = g.addSubtree(plan)
	return g
}

func (g *HepGraph) addSubtree(plan planner.LogicalPlan) HepNodeID {
	children := make([]HepNodeID, 0, len(plan.Children()))
	for _, child := range plan.Children() {
		children = append(children, g.addSubtree(child))
	}
	g.nodes = append(g.nodes, &hepNode{plan: plan, children: children})
	return HepNodeID(len(g.nodes) - 1)
}

// Root 根节点号
func (g *HepGraph) Root() HepNodeID {
	return g.root
}

// Exists 节点是否仍在图中
func (g *HepGraph) Exists(id HepNodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && g.nodes[id] != nil
}

// Operator 节点上的逻辑算子
func (g *HepGraph) Operator(id HepNodeID) planner.LogicalPlan {
	if !g.Exists(id) {
		return nil
	}
	return g.nodes[id].plan
}

// Children 节点的子节点号
func (g *HepGraph) Children(id HepNodeID) []HepNodeID {
	if !g.Exists(id) {
		return nil
	}
	return g.nodes[id].children
}

// parentOf 查找节点的父节点及其在父的子列表中的位置
func (g *HepGraph) parentOf(id HepNodeID) (HepNodeID, int, bool) {
	for i, node := range g.nodes {
		if node == nil {
			continue
		}
		for j, child := range node.children {
			if child == id {
				return HepNodeID(i), j, true
			}
		}
	}
	return 0, 0, false
}

// RemoveNode 摘除单子节点，子节点接到原父节点上
func (g *HepGraph) RemoveNode(id HepNodeID) error {
	if !g.Exists(id) {
		return fmt.Errorf("node %d does not exist", id)
	}
	children := g.nodes[id].children
	if len(children) != 1 {
		return fmt.Errorf("cannot splice node %d with %d children", id, len(children))
	}
	child := children[0]
	if id == g.root {
		g.root = child
	} else {
		parent, pos, ok := g.parentOf(id)
		if !ok {
			return fmt.Errorf("node %d has no parent and is not root", id)
		}
		g.nodes[parent].children[pos] = child
	}
	g.nodes[id] = nil
	return nil
}

// SwapWithChild 交换节点与其唯一子节点的上下位置
func (g *HepGraph) SwapWithChild(id HepNodeID) error {
	if !g.Exists(id) {
		return fmt.Errorf("node %d does not exist", id)
	}
	if len(g.nodes[id].children) != 1 {
		return fmt.Errorf("cannot swap node %d with %d children", id, len(g.nodes[id].children))
	}
	child := g.nodes[id].children[0]
	if !g.Exists(child) {
		return fmt.Errorf("child %d does not exist", child)
	}

	if id == g.root {
		g.root = child
	} else {
		parent, pos, ok := g.parentOf(id)
		if !ok {
			return fmt.Errorf("node %d has no parent and is not root", id)
		}
		g.nodes[parent].children[pos] = child
	}
	g.nodes[id].children = g.nodes[child].children
	g.nodes[child].children = []HepNodeID{id}
	return nil
}

// NodeIDsTopDown 自根向下（先序）的可达节点序列
func (g *HepGraph) NodeIDsTopDown() []HepNodeID {
	ids := make([]HepNodeID, 0, len(g.nodes))
	var walk func(id HepNodeID)
	walk = func(id HepNodeID) {
		if !g.Exists(id) {
			return
		}
		ids = append(ids, id)
		for _, child := range g.nodes[id].children {
			walk(child)
		}
	}
	walk(g.root)
	return ids
}

// NodeIDsBottomUp 自叶向上（后序）的可达节点序列
func (g *HepGraph) NodeIDsBottomUp() []HepNodeID {
	ids := make([]HepNodeID, 0, len(g.nodes))
	var walk func(id HepNodeID)
	walk = func(id HepNodeID) {
		if !g.Exists(id) {
			return
		}
		for _, child := range g.nodes[id].children {
			walk(child)
		}
		ids = append(ids, id)
	}
	walk(g.root)
	return ids
}

// ExtractPlan 将图还原为逻辑计划树
func (g *HepGraph) ExtractPlan() planner.LogicalPlan {
	var build func(id HepNodeID) planner.LogicalPlan
	build = func(id HepNodeID) planner.LogicalPlan {
		node := g.nodes[id]
		children := make([]planner.LogicalPlan, 0, len(node.children))
		for _, child := range node.children {
			children = append(children, build(child))
		}
		node.plan.SetChildren(children...)
		return node.plan
	}
	return build(g.root)
}
