package community

import (
	"sort"

	"github.com/terra-graph/newsgraph/pkg/common"
)

// Graph is the undirected view of the persisted relationships that
// community detection runs on. Node and neighbor lists are sorted so every
// run over the same relationships produces the same partition.
type Graph struct {
	Nodes     []string
	Neighbors map[string][]string
	Edges     []common.Relationship
}

// BuildGraph builds the undirected graph from the stored relationships.
// Only entities that participate in at least one relationship appear;
// isolated entities carry no community signal.
func BuildGraph(relationships []common.Relationship) *Graph {
	nodeSet := make(map[string]struct{})
	neighborSets := make(map[string]map[string]struct{})

	addEdge := func(a, b string) {
		if neighborSets[a] == nil {
			neighborSets[a] = map[string]struct{}{}
		}
		neighborSets[a][b] = struct{}{}
	}

	for _, r := range relationships {
		if r.SourceEntity == "" || r.TargetEntity == "" || r.SourceEntity == r.TargetEntity {
			continue
		}
		nodeSet[r.SourceEntity] = struct{}{}
		nodeSet[r.TargetEntity] = struct{}{}
		addEdge(r.SourceEntity, r.TargetEntity)
		addEdge(r.TargetEntity, r.SourceEntity)
	}

	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	neighbors := make(map[string][]string, len(neighborSets))
	for node, set := range neighborSets {
		list := make([]string, 0, len(set))
		for n := range set {
			list = append(list, n)
		}
		sort.Strings(list)
		neighbors[node] = list
	}

	return &Graph{
		Nodes:     nodes,
		Neighbors: neighbors,
		Edges:     relationships,
	}
}

// components returns the connected components of the graph, each sorted,
// ordered by their smallest member.
func (g *Graph) components() [][]string {
	visited := make(map[string]bool, len(g.Nodes))
	var components [][]string

	for _, start := range g.Nodes {
		if visited[start] {
			continue
		}

		var component []string
		queue := []string{start}
		visited[start] = true
		for len(queue) > 0 {
			node := queue[0]
			queue = queue[1:]
			component = append(component, node)
			for _, neighbor := range g.Neighbors[node] {
				if !visited[neighbor] {
					visited[neighbor] = true
					queue = append(queue, neighbor)
				}
			}
		}
		sort.Strings(component)
		components = append(components, component)
	}

	return components
}
