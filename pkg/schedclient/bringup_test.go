package schedclient

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehand-io/stagehand/pkg/config"
	"github.com/stagehand-io/stagehand/pkg/k8s"
	"github.com/stagehand-io/stagehand/pkg/types"
)

// fakePods plays back a sequence of pod phases and records the calls it
// receives.
type fakePods struct {
	mu      sync.Mutex
	phases  []k8s.PodPhase
	ip      string
	created []k8s.PodTemplate
	deleted int
}

func (f *fakePods) GetPodPhase(_ context.Context, _, _ string) (k8s.PodPhase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.phases) == 0 {
		return k8s.PodRunning, nil
	}
	phase := f.phases[0]
	if len(f.phases) > 1 {
		f.phases = f.phases[1:]
	}
	return phase, nil
}

func (f *fakePods) CreatePod(_ context.Context, tmpl k8s.PodTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, tmpl)
	return nil
}

func (f *fakePods) DeletePod(_ context.Context, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted++
	return nil
}

func (f *fakePods) GetPodIP(_ context.Context, _, _ string) (string, error) {
	return f.ip, nil
}

func (f *fakePods) CreateDaemonSet(_ context.Context, _ k8s.DaemonSetTemplate) error {
	return nil
}

func bringupFixture(t *testing.T, pods *fakePods) (*Client, *traceServer) {
	t.Helper()
	ts := &traceServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.entries = append(ts.entries, fmt.Sprintf("%s %s", r.Method, r.URL.Path))
		ts.mu.Unlock()
		if ts.handler != nil {
			ts.handler(w, r, "")
		}
	}))
	t.Cleanup(srv.Close)

	orig := podDNSFunc
	podDNSFunc = func(ip, namespace string, port int) string { return srv.URL }
	t.Cleanup(func() { podDNSFunc = orig })

	cfg := config.Default()
	cfg.Namespace = "ns"
	cfg.RunName = "run1"
	cfg.RegisterRetry.MaxAttempts = 3
	cfg.RegisterRetry.InitialBackoff = time.Millisecond

	return New(cfg, pods), ts
}

func TestEnsureSchedulerCreatesMissingPod(t *testing.T) {
	pods := &fakePods{
		phases: []k8s.PodPhase{k8s.PodMissing, k8s.PodWaiting, k8s.PodWaiting, k8s.PodRunning},
		ip:     "10.1.2.3",
	}
	c, ts := bringupFixture(t, pods)

	require.NoError(t, c.EnsureScheduler(context.Background()))

	require.Len(t, pods.created, 1)
	tmpl := pods.created[0]
	assert.Equal(t, "workflow-scheduler", tmpl.Name)
	assert.Equal(t, tmpl.Name, tmpl.Env["SCHEDULER_NAME"])
	assert.Equal(t, "true", tmpl.Env["AUTOCLOSE"])

	trace := ts.trace()
	require.Len(t, trace, 1)
	assert.Equal(t, "PUT /scheduler/registerScheduler/ns/run1/fair", trace[0])
}

func TestEnsureSchedulerRecreatesTerminatedPod(t *testing.T) {
	pods := &fakePods{
		phases: []k8s.PodPhase{k8s.PodTerminated, k8s.PodRunning},
		ip:     "10.1.2.3",
	}
	c, _ := bringupFixture(t, pods)

	require.NoError(t, c.EnsureScheduler(context.Background()))
	assert.Equal(t, 1, pods.deleted)
	assert.Len(t, pods.created, 1)
}

func TestEnsureSchedulerReusesRunningPod(t *testing.T) {
	pods := &fakePods{phases: []k8s.PodPhase{k8s.PodRunning}, ip: "10.1.2.3"}
	c, _ := bringupFixture(t, pods)

	require.NoError(t, c.EnsureScheduler(context.Background()))
	assert.Empty(t, pods.created)
	assert.Zero(t, pods.deleted)
}

func TestEnsureSchedulerRejectsUnknownState(t *testing.T) {
	pods := &fakePods{phases: []k8s.PodPhase{k8s.PodUnknown}}
	c, _ := bringupFixture(t, pods)

	err := c.EnsureScheduler(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected state")
}

func TestEnsureSchedulerRunsOnce(t *testing.T) {
	pods := &fakePods{phases: []k8s.PodPhase{k8s.PodRunning}, ip: "10.1.2.3"}
	c, ts := bringupFixture(t, pods)

	ctx := context.Background()
	require.NoError(t, c.EnsureScheduler(ctx))
	require.NoError(t, c.EnsureScheduler(ctx))

	assert.Len(t, ts.trace(), 1)
}

func TestEnsureSchedulerSubmitsDagSnapshot(t *testing.T) {
	pods := &fakePods{phases: []k8s.PodPhase{k8s.PodRunning}, ip: "10.1.2.3"}
	c, ts := bringupFixture(t, pods)
	c.DagSource = func() ([]types.Vertex, []types.Edge) {
		return []types.Vertex{{UID: 1}, {UID: 2}}, []types.Edge{{FromUID: 1, ToUID: 2}}
	}

	require.NoError(t, c.EnsureScheduler(context.Background()))

	trace := ts.trace()
	require.Len(t, trace, 3)
	assert.Equal(t, "PUT /scheduler/DAG/addVertices/ns/run1", trace[1])
	assert.Equal(t, "PUT /scheduler/DAG/addEdges/ns/run1", trace[2])
}

func TestRegisterRetriesConnectionRefused(t *testing.T) {
	// a server that is stopped before the call: every attempt is refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cfg := config.Default()
	cfg.Namespace = "ns"
	cfg.RunName = "run1"
	cfg.RegisterRetry = config.Retry{MaxAttempts: 3, InitialBackoff: time.Millisecond, Factor: 1.0}

	c := NewWithBaseURL(cfg, url)
	err := c.register(context.Background(), url)
	require.Error(t, err)
	assert.True(t, isConnectionRefused(err), "want connection refused, got %v", err)
}

func TestRegisterUnknownHostIsFatal(t *testing.T) {
	cfg := config.Default()
	cfg.Namespace = "ns"
	cfg.RunName = "run1"
	cfg.RegisterRetry = config.Retry{MaxAttempts: 50, InitialBackoff: time.Second, Factor: 1.0}

	url := "http://scheduler.does-not-exist.invalid:9999"
	c := NewWithBaseURL(cfg, url)

	start := time.Now()
	err := c.register(context.Background(), url)
	require.Error(t, err)
	// fatal immediately, not after the 50-attempt budget
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, err.Error(), "DNS")
}

func TestPodDNS(t *testing.T) {
	assert.Equal(t,
		"http://10-42-0-7.wf.pod.cluster.local:8080",
		podDNS("10.42.0.7", "wf", 8080))
}

func TestRegisterNon2xxIsFatal(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad strategy", http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Namespace = "ns"
	cfg.RunName = "run1"
	cfg.RegisterRetry = config.Retry{MaxAttempts: 5, InitialBackoff: time.Millisecond, Factor: 1.0}

	c := NewWithBaseURL(cfg, srv.URL)
	err := c.register(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a non-2xx response must not be retried")
	assert.True(t, strings.Contains(err.Error(), "400"))
}
