package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hupe1980/hnswkit/internal/fs"
)

// FileWriter produces one file of an atomic save.
type FileWriter struct {
	Name  string
	Write func(w io.Writer) error
}

// AtomicSaveToDir writes every file to a temporary name in dir, syncs it and
// renames all of them into place. Either all renames happen or the temporary
// files are removed; a failure never leaves a partial file under a final name.
// Files that already exist under a final name are kept aside until every
// rename succeeded and are put back otherwise.
// It returns the number of bytes written per file, in input order.
func AtomicSaveToDir(fsys fs.FileSystem, dir string, files []FileWriter) ([]int64, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: failed to create directory %s: %w", dir, err)
	}

	mappings := make([]fileMapping, 0, len(files))
	sizes := make([]int64, 0, len(files))

	committed := false
	defer func() {
		if committed {
			return
		}
		for _, m := range mappings {
			_ = fsys.Remove(m.temp)
		}
	}()

	suffix := ".tmp-" + uuid.NewString()
	for _, f := range files {
		target := filepath.Join(dir, f.Name)
		temp := target + suffix

		file, err := fsys.OpenFile(temp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("persistence: failed to create temp file for %s: %w", f.Name, err)
		}
		mappings = append(mappings, fileMapping{temp: temp, target: target})

		n, err := writeSynced(file, f.Write)
		if err != nil {
			return nil, fmt.Errorf("persistence: failed to write %s: %w", f.Name, err)
		}
		sizes = append(sizes, n)
	}

	if err := installAll(fsys, mappings, suffix); err != nil {
		return nil, err
	}
	committed = true

	_ = fsys.SyncDir(dir)

	return sizes, nil
}

type fileMapping struct {
	temp   string
	target string
	backup string
}

// installAll moves existing targets to backups, then renames every temp file
// into place. On failure the new files are removed and the backups restored.
func installAll(fsys fs.FileSystem, mappings []fileMapping, suffix string) error {
	installed := 0
	rollback := func() {
		for i := range mappings {
			m := &mappings[i]
			if i < installed {
				_ = fsys.Remove(m.target)
			}
			if m.backup != "" {
				_ = fsys.Rename(m.backup, m.target)
			}
		}
	}

	for i := range mappings {
		m := &mappings[i]
		if _, err := fsys.Stat(m.target); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			rollback()
			return fmt.Errorf("persistence: failed to stat %s: %w", m.target, err)
		}
		backup := m.target + ".bak" + suffix
		if err := fsys.Rename(m.target, backup); err != nil {
			rollback()
			return fmt.Errorf("persistence: failed to back up %s: %w", m.target, err)
		}
		m.backup = backup
	}

	for _, m := range mappings {
		if err := fsys.Rename(m.temp, m.target); err != nil {
			rollback()
			return fmt.Errorf("persistence: failed to rename %s: %w", m.target, err)
		}
		installed++
	}

	for _, m := range mappings {
		if m.backup != "" {
			_ = fsys.Remove(m.backup)
		}
	}
	return nil
}

func writeSynced(file fs.File, write func(io.Writer) error) (int64, error) {
	cw := &countingWriter{w: file}
	bw := bufio.NewWriterSize(cw, 256*1024)

	if err := write(bw); err != nil {
		_ = file.Close()
		return cw.n, err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return cw.n, err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return cw.n, err
	}
	return cw.n, file.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
