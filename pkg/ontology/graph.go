package ontology

import "sort"

// Graph is the typed in-memory ontology produced by Load: artifact types
// and verbs in registries, relationships with adjacency indices, and a
// precomputed BFS-distance-from-root table the Scheduler's tie-break rule
// (i) needs without recomputing it per Plan() call (spec §4.2 tie-break,
// §9 "pure function" design note).
type Graph struct {
	Artifacts *ArtifactRegistry
	Verbs     *VerbRegistry

	Relationships []Relationship

	// outgoingBySource indexes relationships by their source artifact kind.
	outgoingBySource map[string][]*Relationship

	// outgoingByVerbType indexes relationships by verbType.
	outgoingByVerbType map[VerbType][]*Relationship

	// reverseByTarget indexes relationships by their target artifact kind.
	reverseByTarget map[string][]*Relationship

	// bfsDistance maps artifact kind -> shortest hop count from RootKind
	// following Dependency edges in either direction.
	bfsDistance map[string]int
}

// OutgoingBySource returns all relationships whose source is kind.
func (g *Graph) OutgoingBySource(kind string) []*Relationship {
	return g.outgoingBySource[kind]
}

// OutgoingByVerbType returns all relationships of the given verbType.
func (g *Graph) OutgoingByVerbType(t VerbType) []*Relationship {
	return g.outgoingByVerbType[t]
}

// ReverseByTarget returns all relationships whose target is kind.
func (g *Graph) ReverseByTarget(kind string) []*Relationship {
	return g.reverseByTarget[kind]
}

// BFSDistance returns kind's precomputed distance from RootKind via
// Dependency edges, or -1 if kind is unreachable from the root.
func (g *Graph) BFSDistance(kind string) int {
	d, ok := g.bfsDistance[kind]
	if !ok {
		return -1
	}
	return d
}

// buildIndices populates the adjacency maps from g.Relationships.
func (g *Graph) buildIndices() {
	g.outgoingBySource = map[string][]*Relationship{}
	g.outgoingByVerbType = map[VerbType][]*Relationship{}
	g.reverseByTarget = map[string][]*Relationship{}

	for i := range g.Relationships {
		rel := &g.Relationships[i]
		g.outgoingBySource[rel.Source.Name] = append(g.outgoingBySource[rel.Source.Name], rel)
		g.outgoingByVerbType[rel.Verb.VerbType] = append(g.outgoingByVerbType[rel.Verb.VerbType], rel)
		g.reverseByTarget[rel.Target.Name] = append(g.reverseByTarget[rel.Target.Name], rel)
	}

	for _, rels := range g.outgoingBySource {
		sortRelationships(rels)
	}
	for _, rels := range g.outgoingByVerbType {
		sortRelationships(rels)
	}
	for _, rels := range g.reverseByTarget {
		sortRelationships(rels)
	}
}

func sortRelationships(rels []*Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if a.Source.Name != b.Source.Name {
			return a.Source.Name < b.Source.Name
		}
		if a.Verb.Name != b.Verb.Name {
			return a.Verb.Name < b.Verb.Name
		}
		return a.Target.Name < b.Target.Name
	})
}

// computeBFSDistance runs BFS from RootKind over Dependency edges,
// traversing them in both directions (source->target and target->source).
//
// The Scheduler's tie-break rule only needs a consistent total order, so
// distance is computed over the undirected Dependency adjacency: every
// kind connected to the root via any chain of Dependency edges gets a
// finite distance.
func (g *Graph) computeBFSDistance(rootKind string) {
	adjacency := map[string][]string{}
	for _, rel := range g.Relationships {
		if rel.Verb.VerbType != VerbTypeDependency {
			continue
		}
		adjacency[rel.Source.Name] = append(adjacency[rel.Source.Name], rel.Target.Name)
		adjacency[rel.Target.Name] = append(adjacency[rel.Target.Name], rel.Source.Name)
	}

	dist := map[string]int{rootKind: 0}
	queue := []string{rootKind}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}

	g.bfsDistance = dist
}

// dependencySCCs returns the strongly connected components of the
// Dependency-edge subgraph (source -> target, "target requires source"),
// via Tarjan's algorithm. Any component of size > 1 is a cycle.
func (g *Graph) dependencySCCs() [][]string {
	adjacency := map[string][]string{}
	nodes := map[string]struct{}{}
	for _, rel := range g.Relationships {
		if rel.Verb.VerbType != VerbTypeDependency {
			continue
		}
		adjacency[rel.Source.Name] = append(adjacency[rel.Source.Name], rel.Target.Name)
		nodes[rel.Source.Name] = struct{}{}
		nodes[rel.Target.Name] = struct{}{}
	}

	t := &tarjan{
		adjacency: adjacency,
		index:     map[string]int{},
		lowlink:   map[string]int{},
		onStack:   map[string]bool{},
	}

	ordered := make([]string, 0, len(nodes))
	for n := range nodes {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	for _, n := range ordered {
		if _, visited := t.index[n]; !visited {
			t.strongconnect(n)
		}
	}
	return t.sccs
}

// tarjan implements Tarjan's strongly-connected-components algorithm.
type tarjan struct {
	adjacency map[string][]string
	index     map[string]int
	lowlink   map[string]int
	onStack   map[string]bool
	stack     []string
	counter   int
	sccs      [][]string
}

func (t *tarjan) strongconnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.adjacency[v] {
		if _, visited := t.index[w]; !visited {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
