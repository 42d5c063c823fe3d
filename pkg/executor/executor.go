package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/stagehand-io/stagehand/pkg/config"
	"github.com/stagehand-io/stagehand/pkg/journal"
	"github.com/stagehand-io/stagehand/pkg/k8s"
	"github.com/stagehand-io/stagehand/pkg/localpath"
	"github.com/stagehand-io/stagehand/pkg/log"
	"github.com/stagehand-io/stagehand/pkg/manifest"
	"github.com/stagehand-io/stagehand/pkg/schedclient"
	"github.com/stagehand-io/stagehand/pkg/types"
	"github.com/stagehand-io/stagehand/pkg/walker"
)

// Manifest names inside a task work directory.
const (
	InfilesName  = ".command.infiles"
	OutfilesName = ".command.outfiles"
)

// TaskRun identifies one finished task whose outputs are collected.
type TaskRun struct {
	Name    string
	WorkDir string
	Node    string
}

// Executor wires the workflow engine's task lifecycle to the scheduling
// and data-locality subsystem.
type Executor struct {
	cfg  *config.Config
	pods k8s.PodClient

	mu      sync.Mutex
	client  *schedclient.Client
	factory *localpath.Factory
	walker  *walker.Walker
	journal *journal.Journal

	dag dagState
}

// New creates an executor without a scheduler client; SetSchedulerClient
// must run before tasks are processed.
func New(cfg *config.Config, pods k8s.PodClient) *Executor {
	return &Executor{cfg: cfg, pods: pods}
}

// SetSchedulerClient binds the executor to the run's scheduler client and
// installs the path factory everything downstream creates LocalPaths with.
func (e *Executor) SetSchedulerClient(client *schedclient.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.client = client
	e.factory = &localpath.Factory{
		Client: client,
		Dialer: localpath.NewFTPDialer(e.cfg.FTPTimeout),
		Retry:  e.cfg.FetchRetry.Policy(),
	}
	e.walker = walker.New(e.factory.New)
	client.DagSource = e.dag.Snapshot
}

// PathFactory returns the installed LocalPath factory.
func (e *Executor) PathFactory() walker.Factory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factory.New
}

// Walker returns the manifest walker bound to the run.
func (e *Executor) Walker() *walker.Walker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.walker
}

// OpenJournal attaches the run journal used to keep output collection
// idempotent across engine restarts.
func (e *Executor) OpenJournal(path string) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.journal = j
	e.mu.Unlock()
	return nil
}

// Start brings up the scheduler pod, registers the run, and creates the
// DaemonSet exposing every node's scratch directory.
func (e *Executor) Start(ctx context.Context) error {
	if err := e.client.EnsureScheduler(ctx); err != nil {
		return err
	}
	return e.StageDaemonSet(ctx)
}

// StageDaemonSet creates the per-node daemon that serves node-local
// scratch over FTP.
func (e *Executor) StageDaemonSet(ctx context.Context) error {
	d := e.cfg.Daemon
	tmpl := k8s.DaemonSetTemplate{
		Name:      d.Name,
		Namespace: e.cfg.Namespace,
		Image:     d.Image,
		MountPath: d.MountPath,
		HostPath:  e.cfg.LocalRoot,
		Port:      d.Port,
	}
	if err := e.pods.CreateDaemonSet(ctx, tmpl); err != nil {
		return fmt.Errorf("failed to create daemon set: %w", err)
	}
	return nil
}

// InformDagChange forwards the grown DAG to the scheduler.
func (e *Executor) InformDagChange(ctx context.Context, vertices []types.Vertex, edges []types.Edge) error {
	e.dag.Extend(vertices, edges)
	v, ed := e.dag.Snapshot()
	return e.client.InformDagChange(ctx, v, ed)
}

// BeginPoll opens a submission batch around one task-submission poll.
func (e *Executor) BeginPoll(ctx context.Context) error {
	return e.client.StartBatch(ctx)
}

// EndPoll flushes the batch opened by BeginPoll.
func (e *Executor) EndPoll(ctx context.Context) error {
	return e.client.EndBatch(ctx)
}

// SubmitTask registers one task and announces it to the batch layer.
func (e *Executor) SubmitTask(ctx context.Context, task *types.TaskConfig) (*types.TaskHandle, error) {
	if err := e.client.StartSubmit(ctx); err != nil {
		return nil, err
	}
	return e.client.RegisterTask(ctx, task)
}

// InputScanCommand returns the wrapper command that records a task's
// staged inputs before user code runs.
func (e *Executor) InputScanCommand(workdir string) string {
	return e.scanCommand(workdir, InfilesName)
}

// OutputScanCommand returns the wrapper command that records a task's
// outputs after user code finished.
func (e *Executor) OutputScanCommand(workdir string) string {
	return e.scanCommand(workdir, OutfilesName)
}

func (e *Executor) scanCommand(workdir, name string) string {
	return fmt.Sprintf("stagehand scan long %s %s %s",
		shellQuote(filepath.Join(workdir, name)),
		shellQuote(e.cfg.LocalRoot),
		shellQuote(workdir),
	)
}

// CollectOutputs walks a finished task's output manifest and reports every
// file to the scheduler as a new location on the task's node. Collection
// is idempotent when a journal is attached.
func (e *Executor) CollectOutputs(ctx context.Context, task TaskRun) error {
	if e.journal != nil {
		done, err := e.journal.Collected(task.Name)
		if err != nil {
			return err
		}
		if done {
			taskLogger := log.WithTask(task.Name)
			taskLogger.Debug().Msg("outputs already collected")
			return nil
		}
	}

	manifestPath := filepath.Join(task.WorkDir, OutfilesName)
	v := &collectVisitor{ctx: ctx, client: e.client, node: task.Node}
	if err := e.walker.Walk(manifestPath, v, task.WorkDir); err != nil {
		return fmt.Errorf("failed to collect outputs of %s: %w", task.Name, err)
	}

	if e.journal != nil {
		if err := e.journal.MarkCollected(task.Name, manifestPath, v.reported); err != nil {
			return err
		}
	}
	taskLogger := log.WithTask(task.Name)
	taskLogger.Info().Int("files", v.reported).Msg("outputs collected")
	return nil
}

// collectVisitor reports each existing non-directory row of an output
// manifest (regular files and symbolic links); rows for missing link
// targets are skipped.
type collectVisitor struct {
	ctx      context.Context
	client   *schedclient.Client
	node     string
	reported int
}

func (v *collectVisitor) PreVisitDirectory(_ *localpath.Path, _ *manifest.FileRecord) (walker.Result, error) {
	return walker.Continue, nil
}

func (v *collectVisitor) VisitFile(p *localpath.Path, attrs *manifest.FileRecord) (walker.Result, error) {
	if !attrs.Exists {
		return walker.Continue, nil
	}
	update := types.FileUpdate{
		Path:      p.String(),
		Size:      attrs.Size,
		Timestamp: attrs.ModificationTime.UnixMilli(),
		Node:      v.node,
	}
	if err := v.client.AddFileLocation(v.ctx, update, false); err != nil {
		return walker.Continue, err
	}
	v.reported++
	return walker.Continue, nil
}

// Shutdown flushes the open batch, deregisters the run, and releases the
// journal. Safe to call once the workflow completed or aborted.
func (e *Executor) Shutdown(ctx context.Context) {
	execLogger := log.WithComponent("executor")
	if err := e.client.EndBatch(ctx); err != nil {
		execLogger.Warn().Err(err).Msg("failed to flush final batch")
	}
	e.client.Close(ctx)
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			execLogger.Warn().Err(err).Msg("failed to close journal")
		}
	}
}

func shellQuote(s string) string {
	return "'" + s + "'"
}
