package workflow

// Graph is the static topology of a workflow: the node set, the entry
// point, and the (possibly conditional) edges between nodes.
//
// A Graph is built once at startup via NewGraph and is immutable
// thereafter; there is no runtime node or edge mutation. The zero value
// is not usable.
type Graph[S any] struct {
	start string
	nodes map[string]Node[S]
	edges []Edge[S]
}

// NewGraph constructs and validates a workflow topology.
//
// Validation rules:
//   - start must name a registered node
//   - node IDs must be non-empty and implementations non-nil
//   - every edge endpoint must name a registered node
//
// The nodes map and edges slice are copied, so the caller's values may
// be reused or discarded after construction.
func NewGraph[S any](start string, nodes map[string]Node[S], edges []Edge[S]) (*Graph[S], error) {
	if len(nodes) == 0 {
		return nil, &EngineError{Code: "EMPTY_GRAPH", Message: "graph requires at least one node"}
	}

	g := &Graph[S]{
		start: start,
		nodes: make(map[string]Node[S], len(nodes)),
		edges: make([]Edge[S], 0, len(edges)),
	}

	for id, node := range nodes {
		if id == "" {
			return nil, &EngineError{Code: "INVALID_NODE", Message: "node ID cannot be empty"}
		}
		if node == nil {
			return nil, &EngineError{Code: "INVALID_NODE", Message: "node cannot be nil: " + id}
		}
		g.nodes[id] = node
	}

	if _, ok := g.nodes[start]; !ok {
		return nil, &EngineError{Code: "NODE_NOT_FOUND", Message: "start node does not exist: " + start}
	}

	for _, edge := range edges {
		if _, ok := g.nodes[edge.From]; !ok {
			return nil, &EngineError{Code: "NODE_NOT_FOUND", Message: "edge source does not exist: " + edge.From}
		}
		if _, ok := g.nodes[edge.To]; !ok {
			return nil, &EngineError{Code: "NODE_NOT_FOUND", Message: "edge target does not exist: " + edge.To}
		}
		g.edges = append(g.edges, edge)
	}

	return g, nil
}

// Start returns the entry node ID.
func (g *Graph[S]) Start() string {
	return g.start
}

// Node returns the implementation registered under id.
func (g *Graph[S]) Node(id string) (Node[S], bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// Route finds the first matching outgoing edge from the given node.
//
// Edges are evaluated in declaration order:
//  1. An edge with a nil predicate (unconditional) always matches.
//  2. A conditional edge matches when its predicate returns true.
//
// Returns empty string if no edge matches.
func (g *Graph[S]) Route(from string, state S) string {
	for _, edge := range g.edges {
		if edge.From != from {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}
