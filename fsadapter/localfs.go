package fsadapter

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// localFS is the POSIX backend
type localFS struct{}

func newLocalFS() FileSystem {
	return localFS{}
}

func (localFS) OpenWriter(path string) (FileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &localFileWriter{file: file}, nil
}

func (localFS) ReadAll(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (localFS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (localFS) Remove(path string) error {
	return os.Remove(path)
}

func (localFS) FileSize(path string) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (localFS) WriteAll(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func (localFS) Symlink(target string, link string) error {
	_ = os.Remove(link)
	return os.Symlink(target, link)
}

func (localFS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

type localFileWriter struct {
	file *os.File
}

func (w *localFileWriter) Write(data []byte) (int, error) {
	return w.file.Write(data)
}

func (w *localFileWriter) Sync() error {
	return unix.Fdatasync(int(w.file.Fd()))
}

func (w *localFileWriter) Size() (int64, error) {
	stat, err := w.file.Stat()
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (w *localFileWriter) Close() error {
	return w.file.Close()
}
