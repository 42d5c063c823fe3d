package scan

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/stagehand-io/stagehand/pkg/manifest"
)

// Mode selects the manifest flavour the scanner emits.
type Mode string

const (
	// ModeLong emits the eight-column rows with timestamps.
	ModeLong Mode = "long"
	// ModeShort prepends a wall-clock header and omits the timestamps.
	ModeShort Mode = "short"
)

// ParseMode validates a CLI mode argument.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeLong, ModeShort:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("mode must be 'short' or 'long', got %q", s)
	}
}

// Scanner walks task directories and emits their manifest. Directories are
// walked physically; a symbolic link pointing at a directory under
// LocalRoot is descended into with the emitted paths rewritten so they
// appear under the link source, preserving the task's virtual view of
// staged inputs.
type Scanner struct {
	LocalRoot string
	Mode      Mode
}

// symlinkFrame records one active symlink descent: entries below dst are
// reported as if they lived below src.
type symlinkFrame struct {
	src string
	dst string
}

// Run scans dirs and writes the manifest to out. The first scan directory
// is recorded as the manifest root header. All directories must live under
// LocalRoot.
func (s *Scanner) Run(out io.Writer, dirs []string) error {
	if len(dirs) == 0 {
		return fmt.Errorf("no directory to scan")
	}
	if info, err := os.Stat(s.LocalRoot); err != nil || !info.IsDir() {
		return fmt.Errorf("the local directory %q does not exist", s.LocalRoot)
	}
	for _, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return fmt.Errorf("the directory to search %q does not exist", dir)
		}
		if !underPrefix(dir, s.LocalRoot) {
			return fmt.Errorf("the directory to search %q is not located in the local directory %q", dir, s.LocalRoot)
		}
	}

	w := bufio.NewWriter(out)
	if s.Mode == ModeShort {
		now := time.Now()
		fmt.Fprintf(w, "%d%d\n", now.Unix(), now.Nanosecond())
	}
	fmt.Fprintln(w, dirs[0])

	for _, dir := range dirs {
		if err := s.scanDir(w, dir, dir, dir, nil); err != nil {
			return err
		}
	}
	return w.Flush()
}

// scanDir emits the entries below realDir, reporting them below virtDir.
// root is the top-level directory of this scan; frames holds the active
// symlink descents, outermost first.
func (s *Scanner) scanDir(w *bufio.Writer, root, virtDir, realDir string, frames []symlinkFrame) error {
	entries, err := os.ReadDir(realDir)
	if err != nil {
		return fmt.Errorf("error traversing the directory %s: %w", realDir, err)
	}

	for _, entry := range entries {
		virtPath := filepath.Join(virtDir, entry.Name())
		realPath := filepath.Join(realDir, entry.Name())

		info, err := os.Lstat(realPath)
		if err != nil {
			return fmt.Errorf("error reading the file %s: %w", realPath, err)
		}

		switch {
		case info.IsDir():
			if err := s.emit(w, virtPath, frameTarget(frames, virtPath), info, manifest.TypeDir); err != nil {
				return err
			}
			if err := s.scanDir(w, root, virtPath, realPath, frames); err != nil {
				return err
			}

		case info.Mode()&fs.ModeSymlink != 0:
			if err := s.scanSymlink(w, root, virtPath, realPath, info, frames); err != nil {
				return err
			}

		case info.Mode().IsRegular():
			if err := s.emit(w, virtPath, frameTarget(frames, virtPath), info, manifest.TypeRegular); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scanner) scanSymlink(w *bufio.Writer, root, virtPath, realPath string, info fs.FileInfo, frames []symlinkFrame) error {
	target, err := filepath.EvalSymlinks(realPath)
	if err != nil {
		// dangling link: record the path with the missing flag only
		rec := &manifest.FileRecord{VirtualPath: virtPath, Exists: false}
		fmt.Fprintln(w, s.format(rec))
		return nil
	}

	if err := s.emit(w, virtPath, target, info, manifest.TypeSymlink); err != nil {
		return err
	}

	// a link to a local directory outside the scanned tree is followed,
	// rewriting descendant paths under the link source
	if !underPrefix(target, s.LocalRoot) {
		return nil
	}
	// a target inside the scanned tree would be visited twice
	if underPrefix(target, root) {
		return nil
	}
	targetInfo, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("error reading the file %s: %w", target, err)
	}
	if !targetInfo.IsDir() {
		return nil
	}
	return s.scanDir(w, root, virtPath, target, append(frames, symlinkFrame{src: virtPath, dst: target}))
}

// emit writes one manifest row for an existing entry.
func (s *Scanner) emit(w *bufio.Writer, virtPath, realPath string, info fs.FileInfo, ftype manifest.FileType) error {
	rec := &manifest.FileRecord{
		VirtualPath: virtPath,
		Exists:      true,
		RealPath:    realPath,
		Size:        info.Size(),
		Type:        ftype,
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		// status-change time approximates the creation time
		rec.CreationTime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
		rec.AccessTime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		rec.ModificationTime = info.ModTime()
	} else {
		rec.ModificationTime = info.ModTime()
	}
	_, err := fmt.Fprintln(w, s.format(rec))
	return err
}

func (s *Scanner) format(rec *manifest.FileRecord) string {
	if s.Mode == ModeShort {
		return manifest.FormatShortRecord(rec)
	}
	return manifest.FormatRecord(rec)
}

// frameTarget maps a virtual path to its node-local location when the walk
// is inside a symlink frame, and returns "" otherwise.
func frameTarget(frames []symlinkFrame, virtPath string) string {
	for i := len(frames) - 1; i >= 0; i-- {
		if underPrefix(virtPath, frames[i].src) {
			return frames[i].dst + strings.TrimPrefix(virtPath, frames[i].src)
		}
	}
	return ""
}

func underPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(prefix, "/")+"/")
}
