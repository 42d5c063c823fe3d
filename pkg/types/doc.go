/*
Package types defines the shared data model of the stagehand subsystem.

It holds the wire-level structures exchanged with the remote scheduler
(file locations, DAG vertices and edges, task and run configuration) and a
few small value types shared between packages. JSON tags follow the
scheduler's HTTP contract; everything here is plain data with no behaviour.
*/
package types
