package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"paper-reader/internal/application/port/output"
	"paper-reader/internal/domain/entity"
)

const maxSuffix = 1000

var (
	_ output.ArtifactStore = (*FileStore)(nil)
	_ output.ReportStore   = (*FileStore)(nil)
)

// FileStore only ever creates new files. An existing name gets a -N suffix
// instead of being overwritten.
type FileStore struct {
	dirPerm  fs.FileMode
	filePerm fs.FileMode
}

func NewFileStore() *FileStore {
	return &FileStore{dirPerm: 0o755, filePerm: 0o644}
}

func (s *FileStore) SaveArtifact(dir string, artifact entity.Artifact) (string, error) {
	name := artifact.Filename
	if name == "" {
		return "", &entity.IOError{Path: dir, Err: errors.New("artifact has no filename")}
	}
	return s.create(dir, name, artifact.Data)
}

func (s *FileStore) SaveReport(dir, name string, content []byte) (string, error) {
	return s.create(dir, name, content)
}

func (s *FileStore) create(dir, name string, data []byte) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", &entity.IOError{Path: name, Err: errors.New("filename must not contain a path separator")}
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return "", &entity.IOError{Path: dir, Err: err}
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", &entity.IOError{Path: path, Err: err}
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", &entity.IOError{Path: path, Err: err}
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", &entity.IOError{Path: path, Err: err}
		}
		return path, nil
	}

	return "", &entity.IOError{Path: filepath.Join(dir, name), Err: fmt.Errorf("no free name after %d attempts", maxSuffix)}
}
