package schedclient

import (
	"context"
	"net/http"

	"github.com/stagehand-io/stagehand/pkg/metrics"
	"github.com/stagehand-io/stagehand/pkg/types"
)

// InformDagChange streams the DAG growth to the scheduler. vertices and
// edges are the cumulative snapshot; the client tracks how many vertices
// it has already sent and submits only the new tail, together with the
// edges incident to any new vertex. Vertices are immutable once submitted
// and are never resubmitted, also under concurrent callers.
func (c *Client) InformDagChange(ctx context.Context, vertices []types.Vertex, edges []types.Edge) error {
	c.dagMu.Lock()
	defer c.dagMu.Unlock()

	if c.submitted >= len(vertices) {
		return nil
	}
	fresh := vertices[c.submitted:]

	freshUIDs := make(map[int64]bool, len(fresh))
	for _, v := range fresh {
		freshUIDs[v.UID] = true
	}
	var freshEdges []types.Edge
	for _, e := range edges {
		if freshUIDs[e.FromUID] || freshUIDs[e.ToUID] {
			freshEdges = append(freshEdges, e)
		}
	}

	if err := c.do(ctx, "addVertices", http.MethodPut, c.runPath("/scheduler/DAG/addVertices"), fresh, nil); err != nil {
		return err
	}
	metrics.DagVerticesSubmitted.Add(float64(len(fresh)))

	if len(freshEdges) > 0 {
		if err := c.do(ctx, "addEdges", http.MethodPut, c.runPath("/scheduler/DAG/addEdges"), freshEdges, nil); err != nil {
			return err
		}
		metrics.DagEdgesSubmitted.Add(float64(len(freshEdges)))
	}

	c.submitted = len(vertices)
	return nil
}
