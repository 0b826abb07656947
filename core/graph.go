package core

import "fmt"

// TaskNode is one unit of work in the dependency graph, owned by exactly
// one agent. Dependencies lists the node IDs that must be completed before
// this node becomes ready.
type TaskNode struct {
	ID           string   `json:"id"`
	AgentID      string   `json:"agentId"`
	Task         string   `json:"task"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// Edge records that Target depends on Source.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TaskGraph is the dependency DAG of task nodes. It answers readiness
// queries but deliberately does not reject cycles on construction: a
// cyclic subgraph simply never becomes ready and is caught by the
// scheduler's step budget. FindCycle exists so the timeout failure can be
// labeled precisely.
type TaskGraph struct {
	nodes map[string]*TaskNode
	order []string // insertion order for deterministic iteration
	edges []Edge
}

// NewTaskGraph returns an empty graph.
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{nodes: map[string]*TaskNode{}}
}

// AddNode inserts a node. Node IDs must be unique within the graph.
func (g *TaskGraph) AddNode(n *TaskNode) error {
	if n.ID == "" {
		return fmt.Errorf("task node must have an id")
	}
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate task node %q", n.ID)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	for _, dep := range n.Dependencies {
		g.edges = append(g.edges, Edge{Source: dep, Target: n.ID})
	}
	return nil
}

// AddEdge records that target depends on source and updates the target
// node's dependency list. Both endpoints must already exist.
func (g *TaskGraph) AddEdge(source, target string) error {
	if _, ok := g.nodes[source]; !ok {
		return fmt.Errorf("edge source %q: no such node", source)
	}
	node, ok := g.nodes[target]
	if !ok {
		return fmt.Errorf("edge target %q: no such node", target)
	}
	for _, dep := range node.Dependencies {
		if dep == source {
			return nil // already recorded
		}
	}
	node.Dependencies = append(node.Dependencies, source)
	g.edges = append(g.edges, Edge{Source: source, Target: target})
	return nil
}

// Node returns the node with the given id.
func (g *TaskGraph) Node(id string) (*TaskNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *TaskGraph) Nodes() []*TaskNode {
	out := make([]*TaskNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns a copy of the recorded dependency edges.
func (g *TaskGraph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes.
func (g *TaskGraph) Len() int { return len(g.nodes) }

// RootNodes returns the nodes with no dependencies; these form the initial
// dispatch set.
func (g *TaskGraph) RootNodes() []*TaskNode {
	var roots []*TaskNode
	for _, id := range g.order {
		if len(g.nodes[id].Dependencies) == 0 {
			roots = append(roots, g.nodes[id])
		}
	}
	return roots
}

// ReadyNodes returns nodes whose every dependency is in completed and
// which have not already been dispatched.
func (g *TaskGraph) ReadyNodes(completed, dispatched map[string]bool) []*TaskNode {
	var ready []*TaskNode
	for _, id := range g.order {
		if dispatched[id] || completed[id] {
			continue
		}
		node := g.nodes[id]
		satisfied := true
		for _, dep := range node.Dependencies {
			if !completed[dep] {
				satisfied = false
				break
			}
		}
		if satisfied {
			ready = append(ready, node)
		}
	}
	return ready
}

// IsComplete reports whether every node id is in the completed set.
func (g *TaskGraph) IsComplete(completed map[string]bool) bool {
	for _, id := range g.order {
		if !completed[id] {
			return false
		}
	}
	return true
}

// NodesOwnedBy returns the nodes assigned to the given agent.
func (g *TaskGraph) NodesOwnedBy(agentID string) []*TaskNode {
	var owned []*TaskNode
	for _, id := range g.order {
		if g.nodes[id].AgentID == agentID {
			owned = append(owned, g.nodes[id])
		}
	}
	return owned
}

// FindCycle returns the node IDs forming a dependency cycle, or nil if the
// graph is acyclic. Readiness queries never consult this; the scheduler
// uses it only to refine the failure reason when the step budget expires.
func (g *TaskGraph) FindCycle() []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = visiting
		stack = append(stack, id)
		for _, dep := range g.nodes[id].Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				continue // dangling dependency, not a cycle
			}
			switch color[dep] {
			case visiting:
				// Slice the current path from the first occurrence of dep.
				for i, sid := range stack {
					if sid == dep {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						return cycle
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = done
		return nil
	}

	for _, id := range g.order {
		if color[id] == unvisited {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
