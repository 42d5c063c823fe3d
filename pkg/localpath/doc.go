/*
Package localpath implements location-aware file paths for workflow tasks.

A Path wraps a virtual path discovered in a task manifest. Read operations
ask the remote scheduler where the file currently lives: files owned by
this node are opened directly, everything else is streamed from the owning
node's daemon over FTP. Reads never create a local copy.

Mutation goes through a closed capability set (Write, Append, OpenWrite,
SetModTime, Touch). Each of these first promotes the file to a local copy
(download-on-write) and afterwards reports the new location to the
scheduler, echoing the wrapper id from the location that was read so the
scheduler can reject stale updates.

Before the first I/O on a Path, symbolic links reported with the location
are materialised so the task sees its staged inputs under the expected
virtual paths. Materialisation and download each happen at most once per
instance and are safe under concurrent use; failures to create individual
links are logged and skipped.

Paths are created through a Factory bound to the run's scheduler client,
installed by the executor at run start. Navigation operations (Parent,
Resolve, Normalize, Subpath) derive new Paths sharing that binding.
*/
package localpath
