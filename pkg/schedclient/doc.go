/*
Package schedclient implements the HTTP client of the remote workflow
scheduler.

One Client instance is shared by the whole workflow process. It registers
the run, streams the task DAG incrementally, registers tasks with their
input and output declarations, groups task submissions into batches, and
answers file-location queries for the data-locality layer.

Bring-up is idempotent: EnsureScheduler checks the scheduler pod through
the external Kubernetes client, creates or recreates it as needed, waits
for it to start, derives the pod's in-cluster DNS URL, and registers the
run with a patient retry while the scheduler opens its port. The current
DAG snapshot is submitted immediately after registration.

DAG streaming is monotone: the client remembers how many vertices it has
sent and submits only the new tail plus the edges incident to it, so a
vertex reaches the scheduler exactly once even under concurrent callers.

Close deregisters the run best-effort; afterwards the batching operations
become silent no-ops so a shutting-down executor cannot fail on them.
*/
package schedclient
