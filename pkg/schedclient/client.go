package schedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stagehand-io/stagehand/pkg/config"
	"github.com/stagehand-io/stagehand/pkg/k8s"
	"github.com/stagehand-io/stagehand/pkg/metrics"
	"github.com/stagehand-io/stagehand/pkg/types"
)

// Client is the HTTP client of the remote workflow scheduler. One instance
// is shared by the whole workflow process; every operation is safe for
// concurrent use.
type Client struct {
	cfg  *config.Config
	pods k8s.PodClient
	http *http.Client

	// DagSource, when set, provides the current DAG snapshot that is
	// submitted right after the run registers.
	DagSource func() ([]types.Vertex, []types.Edge)

	mu         sync.Mutex
	baseURL    string
	registered bool
	closed     bool

	bringupMu sync.Mutex

	dagMu     sync.Mutex
	submitted int

	batchMu      sync.Mutex
	tasksInBatch int
}

// New creates a client for the configured run. The scheduler pod is not
// contacted until EnsureScheduler runs.
func New(cfg *config.Config, pods k8s.PodClient) *Client {
	return &Client{
		cfg:  cfg,
		pods: pods,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// NewWithBaseURL creates a client bound to a known scheduler address,
// skipping pod bring-up. Used when the scheduler is managed externally
// and by tests.
func NewWithBaseURL(cfg *config.Config, baseURL string) *Client {
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.HTTPTimeout},
	}
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	c.registered = true
	return c
}

// Namespace returns the run's namespace.
func (c *Client) Namespace() string {
	return c.cfg.Namespace
}

// RunName returns the run's name.
func (c *Client) RunName() string {
	return c.cfg.RunName
}

func (c *Client) base() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseURL
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// statusError is returned for any non-2xx scheduler response.
type statusError struct {
	op   string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("scheduler %s returned %d: %s", e.op, e.code, e.body)
}

// do issues one request against the scheduler. body may be nil, a raw
// string, or a value to JSON-encode; out, when non-nil, receives the
// JSON-decoded response.
func (c *Client) do(ctx context.Context, op, method, path string, body any, out any) error {
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
		contentType = "text/plain"
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.SchedulerRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SchedulerRequestsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("scheduler %s failed: %w", op, err)
	}
	defer resp.Body.Close()

	metrics.SchedulerRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{op: op, code: resp.StatusCode, body: strings.TrimSpace(string(data))}
	}
	if out != nil {
		switch o := out.(type) {
		case *string:
			*o = strings.TrimSpace(string(data))
		default:
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", op, err)
			}
		}
	}
	return nil
}

func (c *Client) runPath(suffix string) string {
	return suffix + "/" + c.cfg.Namespace + "/" + c.cfg.RunName
}

// RegisterTask registers one task with its input and output declarations
// and returns the scheduler's handle for it.
func (c *Client) RegisterTask(ctx context.Context, task *types.TaskConfig) (*types.TaskHandle, error) {
	var handle types.TaskHandle
	err := c.do(ctx, "registerTask", http.MethodPut, c.runPath("/scheduler/registerTask"), task, &handle)
	if err != nil {
		return nil, err
	}
	return &handle, nil
}

// GetTaskState queries the lifecycle state of a registered task.
func (c *Client) GetTaskState(ctx context.Context, id int64) (*types.TaskState, error) {
	var state types.TaskState
	path := c.runPath("/scheduler/taskstate") + "/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "getTaskState", http.MethodGet, path, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// GetFileLocation asks the scheduler where path currently lives.
func (c *Client) GetFileLocation(ctx context.Context, path string) (*types.FileLocation, error) {
	var loc types.FileLocation
	reqPath := c.runPath("/file") + "?path=" + url.QueryEscape(path)
	if err := c.do(ctx, "getFileLocation", http.MethodGet, reqPath, nil, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// AddFileLocation reports a new copy of a file, or overwrites the index
// entry when the file content changed. The update must echo the wrapper id
// of the location that was read.
func (c *Client) AddFileLocation(ctx context.Context, update types.FileUpdate, overwrite bool) error {
	mode := "add"
	if overwrite {
		mode = "overwrite"
	}
	path := c.runPath("/file/location/" + mode)
	if update.Node != "" {
		path += "/" + url.PathEscape(update.Node)
	}
	return c.do(ctx, "addFileLocation", http.MethodPost, path, update, nil)
}

// GetDaemonOnNode resolves the address of the file daemon running on node.
func (c *Client) GetDaemonOnNode(ctx context.Context, node string) (string, error) {
	var daemon string
	path := c.runPath("/daemon") + "/" + url.PathEscape(node)
	if err := c.do(ctx, "getDaemonOnNode", http.MethodGet, path, nil, &daemon); err != nil {
		return "", err
	}
	return daemon, nil
}

// Close deregisters the run. The call is best-effort: errors are ignored
// and all later batch operations become silent no-ops.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	// response code deliberately ignored
	_ = c.do(ctx, "closeScheduler", http.MethodDelete, c.runPath("/scheduler"), nil, nil)
}
