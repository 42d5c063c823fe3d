package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FileType classifies a manifest row.
type FileType string

const (
	TypeRegular FileType = "regular file"
	TypeDir     FileType = "directory"
	TypeSymlink FileType = "symbolic link"
)

// FileTimeLayout is the timestamp format used in manifest rows:
// nanosecond precision with a numeric zone offset.
const FileTimeLayout = "2006-01-02 15:04:05.000000000 -0700"

// FileRecord is one row of a task manifest.
//
// VirtualPath is the path as observed by the scanning task. RealPath is
// empty for entries that live at their virtual path; it holds the link
// target for symbolic links and the node-local location for entries the
// scanner reached through a followed link.
// A row with Exists=false denotes a symbolic link whose target is missing;
// such rows carry no size, type or timestamps.
type FileRecord struct {
	VirtualPath      string
	Exists           bool
	RealPath         string
	Size             int64
	Type             FileType
	CreationTime     time.Time
	AccessTime       time.Time
	ModificationTime time.Time
}

// IsDir reports whether the row describes a directory.
func (r *FileRecord) IsDir() bool {
	return r.Type == TypeDir
}

// IsLink reports whether the row describes a symbolic link. Rows for
// missing targets are always links.
func (r *FileRecord) IsLink() bool {
	return !r.Exists || r.Type == TypeSymlink
}

// Creation returns the creation time, substituting the modification time
// when the creation time is unknown.
func (r *FileRecord) Creation() time.Time {
	if r.CreationTime.IsZero() {
		return r.ModificationTime
	}
	return r.CreationTime
}

// ParseFileTime parses a manifest timestamp, truncating the fractional
// seconds to millisecond precision. An empty string or "-" means the time
// is unknown and yields the zero time.
func ParseFileTime(s string) (time.Time, error) {
	if s == "" || s == "-" {
		return time.Time{}, nil
	}
	t, err := time.Parse(FileTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad file time %q: %w", s, err)
	}
	return t.Truncate(time.Millisecond), nil
}

// FormatFileTime is the inverse of ParseFileTime. The zero time formats
// as "-".
func FormatFileTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(FileTimeLayout)
}

// ErrBadRecord is returned for rows with an unexpected column count.
var ErrBadRecord = fmt.Errorf("malformed manifest record")

// ParseRecord parses one long-form manifest row. Accepted shapes are the
// full eight-column record and the two-column record marking a symbolic
// link with a missing target. Anything else is a hard parse error.
func ParseRecord(line string) (*FileRecord, error) {
	cols := strings.Split(line, ";")
	switch len(cols) {
	case 2:
		if cols[1] != "0" {
			return nil, fmt.Errorf("%w: two-column row with exists=%q", ErrBadRecord, cols[1])
		}
		return &FileRecord{
			VirtualPath: unquote(cols[0]),
			Exists:      false,
		}, nil
	case 8:
		return parseFullRecord(cols)
	default:
		return nil, fmt.Errorf("%w: %d columns in %q", ErrBadRecord, len(cols), line)
	}
}

// ParseShortRecord parses one short-form row: the first five columns of the
// full record, without timestamps. The two-column missing-target shape is
// accepted as well.
func ParseShortRecord(line string) (*FileRecord, error) {
	cols := strings.Split(line, ";")
	switch len(cols) {
	case 2:
		return ParseRecord(line)
	case 5:
		return parseHead(cols)
	default:
		return nil, fmt.Errorf("%w: %d columns in %q", ErrBadRecord, len(cols), line)
	}
}

func parseHead(cols []string) (*FileRecord, error) {
	exists, err := strconv.Atoi(cols[1])
	if err != nil || exists < 0 || exists > 1 {
		return nil, fmt.Errorf("%w: exists flag %q", ErrBadRecord, cols[1])
	}
	size, err := strconv.ParseInt(cols[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: size %q", ErrBadRecord, cols[3])
	}
	ftype := FileType(cols[4])
	switch ftype {
	case TypeRegular, TypeDir, TypeSymlink:
	default:
		return nil, fmt.Errorf("%w: file type %q", ErrBadRecord, cols[4])
	}
	return &FileRecord{
		VirtualPath: unquote(cols[0]),
		Exists:      exists == 1,
		RealPath:    cols[2],
		Size:        size,
		Type:        ftype,
	}, nil
}

func parseFullRecord(cols []string) (*FileRecord, error) {
	rec, err := parseHead(cols[:5])
	if err != nil {
		return nil, err
	}
	if rec.CreationTime, err = ParseFileTime(cols[5]); err != nil {
		return nil, err
	}
	if rec.AccessTime, err = ParseFileTime(cols[6]); err != nil {
		return nil, err
	}
	if rec.ModificationTime, err = ParseFileTime(cols[7]); err != nil {
		return nil, err
	}
	return rec, nil
}

// FormatRecord renders a record as a long-form manifest row.
func FormatRecord(r *FileRecord) string {
	if !r.Exists {
		return r.VirtualPath + ";0"
	}
	return fmt.Sprintf("%s;1;%s;%d;%s;%s;%s;%s",
		r.VirtualPath,
		r.RealPath,
		r.Size,
		r.Type,
		FormatFileTime(r.CreationTime),
		FormatFileTime(r.AccessTime),
		FormatFileTime(r.ModificationTime),
	)
}

// FormatShortRecord renders a record as a short-form row without the
// timestamp columns.
func FormatShortRecord(r *FileRecord) string {
	if !r.Exists {
		return r.VirtualPath + ";0"
	}
	return fmt.Sprintf("%s;1;%s;%d;%s", r.VirtualPath, r.RealPath, r.Size, r.Type)
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'") {
		return s[1 : len(s)-1]
	}
	return s
}
