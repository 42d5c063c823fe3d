/*
Package manifest parses and formats the semicolon-delimited file listings
emitted by the stagehand scanner for a task's inputs and outputs.

A long-form manifest starts with the scanned root directory on its own line,
followed by one eight-column record per file system entry:

	<virtual_path>;<exists>;<real_path>;<size>;<file_type>;<ctime>;<atime>;<mtime>

Symbolic links whose target is missing are recorded as two-column rows
(path and a literal 0). The short form prefixes a numeric wall-clock line
and omits the three timestamp columns. Timestamps use nanosecond precision
("2006-01-02 15:04:05.000000000 -0700"); parsing truncates them to
milliseconds, and the literal "-" means unknown.
*/
package manifest
