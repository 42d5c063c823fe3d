/*
Package metrics exports Prometheus metrics for the stagehand subsystem.

Metrics cover the scheduler HTTP client (request counts and latency, DAG
streaming, batch flushes), the FTP data plane (fetches, retries, bytes
read, download promotions, symlink materialisation) and manifest parsing.
All collectors register with the default registry at init; Handler returns
a promhttp handler for exposure by the embedding executor.
*/
package metrics
