/*
Package scan implements the stagehand file scanner: a physical directory
walk that stats every entry, resolves symbolic links, and emits the
manifest format consumed by pkg/walker.

Task wrappers run the scanner twice, once over the staged inputs before
user code and once over the work directory afterwards. Links that point at
directories under the node-local scratch root are descended into, with the
emitted paths rewritten under the link source so the manifest preserves
the task's virtual view while recording the real node-local location of
every entry.
*/
package scan
