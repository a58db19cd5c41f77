package pipeline

import (
	"fmt"

	"github.com/kingrea/greenlight/internal/stage"
)

// StageID names a node of the stage graph.
type StageID string

const (
	StageNormalize           StageID = stage.NameNormalize
	StageScoreFinancial      StageID = stage.NameScoreFinancial
	StageScoreSustainability StageID = stage.NameScoreSustainability
	StageDecide              StageID = stage.NameDecide
	StagePlanUplift          StageID = stage.NamePlanUplift
	StageSimulateScenarios   StageID = stage.NameSimulateScenarios
	StageSummarizeForReview  StageID = stage.NameSummarizeForReview
)

// Node declares one stage and its edges. Needs are data dependencies; After
// only orders the stage behind other stages without consuming their output.
type Node struct {
	ID    StageID   `json:"id" yaml:"id"`
	Needs []StageID `json:"needs,omitempty" yaml:"needs,omitempty"`
	After []StageID `json:"after,omitempty" yaml:"after,omitempty"`
}

func (n Node) edges() []StageID {
	out := make([]StageID, 0, len(n.Needs)+len(n.After))
	out = append(out, n.Needs...)
	return append(out, n.After...)
}

// Graph is a validated, acyclic stage graph.
type Graph struct {
	nodes []Node
	index map[StageID]int
	waves [][]StageID
}

// NewGraph validates nodes and precomputes their execution waves. Duplicate
// ids, unknown dependencies and cycles are rejected.
func NewGraph(nodes ...Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("pipeline: graph needs at least one stage")
	}
	g := &Graph{index: make(map[StageID]int, len(nodes))}
	for i, node := range nodes {
		if node.ID == "" {
			return nil, fmt.Errorf("pipeline: node[%d] id is required", i)
		}
		if _, exists := g.index[node.ID]; exists {
			return nil, fmt.Errorf("pipeline: duplicate stage %s", node.ID)
		}
		g.index[node.ID] = i
		g.nodes = append(g.nodes, Node{
			ID:    node.ID,
			Needs: append([]StageID(nil), node.Needs...),
			After: append([]StageID(nil), node.After...),
		})
	}
	for _, node := range g.nodes {
		for _, dep := range node.edges() {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("pipeline: stage %s depends on undeclared stage %s", node.ID, dep)
			}
			if dep == node.ID {
				return nil, fmt.Errorf("pipeline: stage %s depends on itself", node.ID)
			}
		}
	}
	waves, err := g.levels()
	if err != nil {
		return nil, err
	}
	g.waves = waves
	return g, nil
}

// DefaultGraph returns the assessment graph. Uplift and scenarios consume the
// risk scores but are ordered behind the decision.
func DefaultGraph() *Graph {
	g, err := NewGraph(
		Node{ID: StageNormalize},
		Node{ID: StageScoreFinancial, Needs: []StageID{StageNormalize}},
		Node{ID: StageScoreSustainability, Needs: []StageID{StageNormalize}},
		Node{ID: StageDecide, Needs: []StageID{StageScoreFinancial, StageScoreSustainability}},
		Node{ID: StagePlanUplift, Needs: []StageID{StageScoreSustainability}, After: []StageID{StageDecide}},
		Node{ID: StageSimulateScenarios, Needs: []StageID{StageScoreFinancial, StageScoreSustainability}, After: []StageID{StageDecide}},
		Node{ID: StageSummarizeForReview, Needs: []StageID{
			StageNormalize, StageScoreFinancial, StageScoreSustainability,
			StageDecide, StagePlanUplift, StageSimulateScenarios,
		}},
	)
	if err != nil {
		panic(err)
	}
	return g
}

// Nodes returns the declared nodes in declaration order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	for i, node := range g.nodes {
		out[i] = Node{
			ID:    node.ID,
			Needs: append([]StageID(nil), node.Needs...),
			After: append([]StageID(nil), node.After...),
		}
	}
	return out
}

// IDs lists stage ids in declaration order.
func (g *Graph) IDs() []StageID {
	out := make([]StageID, len(g.nodes))
	for i, node := range g.nodes {
		out[i] = node.ID
	}
	return out
}

// Node looks up a stage by id.
func (g *Graph) Node(id StageID) (Node, bool) {
	idx, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[idx], true
}

// Waves groups stages into topological levels over both edge kinds. Stages
// inside a wave keep declaration order.
func (g *Graph) Waves() [][]StageID {
	out := make([][]StageID, len(g.waves))
	for i, wave := range g.waves {
		out[i] = append([]StageID(nil), wave...)
	}
	return out
}

func (g *Graph) levels() ([][]StageID, error) {
	remaining := make(map[StageID]int, len(g.nodes))
	dependents := make(map[StageID][]StageID, len(g.nodes))
	for _, node := range g.nodes {
		deps := uniqueIDs(node.edges())
		remaining[node.ID] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}
	var waves [][]StageID
	placed := 0
	for placed < len(g.nodes) {
		var wave []StageID
		for _, node := range g.nodes {
			if remaining[node.ID] == 0 {
				wave = append(wave, node.ID)
			}
		}
		if len(wave) == 0 {
			return nil, fmt.Errorf("pipeline: stage graph contains a cycle")
		}
		for _, id := range wave {
			remaining[id] = -1
			for _, dependent := range dependents[id] {
				remaining[dependent]--
			}
		}
		placed += len(wave)
		waves = append(waves, wave)
	}
	return waves, nil
}

func uniqueIDs(ids []StageID) []StageID {
	seen := make(map[StageID]struct{}, len(ids))
	out := make([]StageID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
