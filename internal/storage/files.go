package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// FileStore writes uploaded book covers under root/users/<ownerID>/. The
// stored name is millisecond-stamped so re-uploads never collide.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) SaveCover(ownerID string, file *multipart.FileHeader, saveFn func(*multipart.FileHeader, string) error) (string, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))

	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedType
	}

	dir := filepath.Join(s.root, "users", ownerID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d%s", time.Now().UnixMilli(), ext)
	dest := filepath.Join(dir, name)

	if err := saveFn(file, dest); err != nil {
		return "", err
	}

	return dest, nil
}
