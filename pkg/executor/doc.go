/*
Package executor glues the workflow engine's task lifecycle to the
scheduling and data-locality subsystem.

At run start the engine installs the scheduler client; the executor binds
a LocalPath factory and a manifest walker to it, brings the scheduler pod
up, and creates the DaemonSet that exposes every node's scratch directory
over FTP. During execution it drives the submission batch around each
task-submission poll (BeginPoll / SubmitTask / EndPoll), forwards DAG
growth, and builds the wrapper commands that scan a task's inputs and
outputs into manifests. When a task finishes, CollectOutputs streams its
output manifest and reports each file to the scheduler as a new location
on the task's node; an optional bolt journal keeps collection idempotent
across engine restarts.
*/
package executor
