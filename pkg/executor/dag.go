package executor

import (
	"sync"

	"github.com/stagehand-io/stagehand/pkg/types"
)

// dagState accumulates the workflow DAG as the engine discovers it.
// Vertices and edges only ever grow; the scheduler client decides which
// tail still needs submitting.
type dagState struct {
	mu       sync.Mutex
	vertices []types.Vertex
	edges    []types.Edge
}

// Extend appends the vertices and edges not seen before, by UID and by
// endpoint pair.
func (d *dagState) Extend(vertices []types.Vertex, edges []types.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()

	known := make(map[int64]bool, len(d.vertices))
	for _, v := range d.vertices {
		known[v.UID] = true
	}
	for _, v := range vertices {
		if !known[v.UID] {
			d.vertices = append(d.vertices, v)
			known[v.UID] = true
		}
	}

	type pair struct{ from, to int64 }
	knownEdges := make(map[pair]bool, len(d.edges))
	for _, e := range d.edges {
		knownEdges[pair{e.FromUID, e.ToUID}] = true
	}
	for _, e := range edges {
		if !knownEdges[pair{e.FromUID, e.ToUID}] {
			d.edges = append(d.edges, e)
			knownEdges[pair{e.FromUID, e.ToUID}] = true
		}
	}
}

// Snapshot returns a copy of the current DAG.
func (d *dagState) Snapshot() ([]types.Vertex, []types.Edge) {
	d.mu.Lock()
	defer d.mu.Unlock()
	vertices := make([]types.Vertex, len(d.vertices))
	copy(vertices, d.vertices)
	edges := make([]types.Edge, len(d.edges))
	copy(edges, d.edges)
	return vertices, edges
}
