/*
Package walker streams the manifests produced by the stagehand scanner and
turns their rows into location-aware paths.

Walk drives a Visitor over every row in input order, honouring SkipSubtree
replies the way a file-tree walk would: once a directory is skipped, every
row below it is dropped without a visitor call. Lookup answers "does this
virtual path exist in a manifest", translating the queried path into the
scanning task's view via the manifest's root header; record matching may
run in parallel because only the first hit is returned.

The walker does not construct paths itself: it is parameterised with a
Factory closure bound to the run's scheduler client, which keeps the
package testable and the client reference non-owning.
*/
package walker
