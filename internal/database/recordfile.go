package database

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadRecords reads a file made of consecutive fixed-size records and calls
// fn with each block in file order. The block passed to fn is reused
// between calls. A missing file yields no records and no error; a trailing
// partial record is ErrCorruptStore.
func ReadRecords(path string, size int, fn func(block []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	block := make([]byte, size)
	for index := 0; ; index++ {
		n, err := io.ReadFull(r, block)
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%s: record %d truncated after %d of %d bytes: %w",
				path, index, n, size, ErrCorruptStore)
		case err != nil:
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := fn(block); err != nil {
			return fmt.Errorf("%s: record %d: %w", path, index, err)
		}
	}
}

// Exists reports whether path exists.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// WriteRecords atomically replaces path with the concatenation of blocks.
// See WriteFileAtomic.
func WriteRecords(path string, blocks [][]byte) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		for _, b := range blocks {
			if _, err := w.Write(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteFileAtomic writes a new version of path through a temporary file in
// the same directory, fsyncs it and renames it over the old file while
// holding an exclusive lock on path+".lock". Readers see either the old or
// the new contents, never a mix. Failures are reported as ErrPersistFailed.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %v: %w", dir, err, ErrPersistFailed)
	}

	lock, err := Lock(path + ".lock")
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrPersistFailed)
	}
	defer lock.Unlock()

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %v: %w", path, err, ErrPersistFailed)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmpFile)
	if err := write(bw); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %v: %w", path, err, ErrPersistFailed)
	}
	if err := bw.Flush(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %v: %w", path, err, ErrPersistFailed)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("syncing %s: %v: %w", path, err, ErrPersistFailed)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp file for %s: %v: %w", path, err, ErrPersistFailed)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming into %s: %v: %w", path, err, ErrPersistFailed)
	}

	success = true
	syncDir(dir)
	return nil
}

// syncDir makes a completed rename durable. Not every filesystem supports
// fsync on directories, so errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
