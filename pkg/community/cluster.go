package community

import (
	"sort"
)

// DefaultMaxClusterSize bounds how many entities a community may hold
// before it is split one level deeper.
const DefaultMaxClusterSize = 10

const labelPropagationRounds = 10

// Cluster is one node group in the hierarchical partition. Parent is the
// id of the oversized cluster it was split out of, or -1 for a top-level
// cluster. A cluster whose id appears as another cluster's Parent was over
// the size bound and only exists to record the membership at that level.
type Cluster struct {
	ID     int
	Parent int
	Level  int
	Nodes  []string
}

// Partition splits the graph into hierarchical clusters. Every connected
// node lands in exactly one cluster per level it participates in, and no
// leaf cluster exceeds maxClusterSize. Input order does not matter; the
// same graph always yields the same clusters.
func Partition(g *Graph, maxClusterSize int) []Cluster {
	if maxClusterSize <= 0 {
		maxClusterSize = DefaultMaxClusterSize
	}

	var clusters []Cluster
	nextID := 0

	var descend func(nodes []string, level int, parent int)
	descend = func(nodes []string, level int, parent int) {
		id := nextID
		nextID++
		clusters = append(clusters, Cluster{
			ID:     id,
			Parent: parent,
			Level:  level,
			Nodes:  nodes,
		})

		if len(nodes) <= maxClusterSize {
			return
		}

		groups := propagateLabels(g, nodes)
		if len(groups) == 1 {
			// Propagation converged on a single label, which happens on
			// dense subgraphs. Halve the node set so recursion terminates.
			groups = bisect(nodes)
		}
		for _, group := range groups {
			descend(group, level+1, id)
		}
	}

	for _, component := range g.components() {
		descend(component, 0, -1)
	}

	return clusters
}

// Leaves returns the clusters that were not split any further. Only these
// respect the size bound.
func Leaves(clusters []Cluster) []Cluster {
	split := make(map[int]bool)
	for _, c := range clusters {
		if c.Parent >= 0 {
			split[c.Parent] = true
		}
	}

	var leaves []Cluster
	for _, c := range clusters {
		if !split[c.ID] {
			leaves = append(leaves, c)
		}
	}
	return leaves
}

// propagateLabels runs synchronous label propagation restricted to the
// given nodes. Ties go to the lexicographically smallest label so the
// outcome is independent of map iteration order.
func propagateLabels(g *Graph, nodes []string) [][]string {
	member := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		member[n] = true
	}

	labels := make(map[string]string, len(nodes))
	for _, n := range nodes {
		labels[n] = n
	}

	for round := 0; round < labelPropagationRounds; round++ {
		changed := false
		for _, n := range nodes {
			counts := make(map[string]int)
			for _, neighbor := range g.Neighbors[n] {
				if member[neighbor] {
					counts[labels[neighbor]]++
				}
			}
			if len(counts) == 0 {
				continue
			}

			best := labels[n]
			bestCount := counts[best]
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best = label
					bestCount = count
				}
			}
			if best != labels[n] {
				labels[n] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	byLabel := make(map[string][]string)
	for _, n := range nodes {
		byLabel[labels[n]] = append(byLabel[labels[n]], n)
	}

	groups := make([][]string, 0, len(byLabel))
	for _, group := range byLabel {
		sort.Strings(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})
	return groups
}

// bisect splits a sorted node list into two halves.
func bisect(nodes []string) [][]string {
	mid := len(nodes) / 2
	return [][]string{nodes[:mid], nodes[mid:]}
}
