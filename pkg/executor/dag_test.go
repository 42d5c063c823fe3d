package executor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagehand-io/stagehand/pkg/types"
)

func TestDagStateDeduplicates(t *testing.T) {
	var d dagState

	d.Extend([]types.Vertex{{UID: 1}, {UID: 2}}, []types.Edge{{FromUID: 1, ToUID: 2}})
	d.Extend([]types.Vertex{{UID: 2}, {UID: 3}}, []types.Edge{{FromUID: 1, ToUID: 2}, {FromUID: 2, ToUID: 3}})

	vertices, edges := d.Snapshot()
	assert.Len(t, vertices, 3)
	assert.Len(t, edges, 2)
}

func TestDagStateSnapshotIsACopy(t *testing.T) {
	var d dagState
	d.Extend([]types.Vertex{{UID: 1}}, nil)

	vertices, _ := d.Snapshot()
	vertices[0].UID = 99

	again, _ := d.Snapshot()
	assert.Equal(t, int64(1), again[0].UID)
}

func TestDagStateConcurrentExtend(t *testing.T) {
	var d dagState
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d.Extend([]types.Vertex{{UID: int64(i)}, {UID: int64(i + 1)}}, nil)
		}(i)
	}
	wg.Wait()

	vertices, _ := d.Snapshot()
	assert.Len(t, vertices, 11)
}
