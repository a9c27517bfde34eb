package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const stagingDir = ".staging"

// ErrTooLarge is returned when a staged stream exceeds its limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// StagedFile is an uploaded file written under the staging directory but not yet published.
type StagedFile struct {
	Name string
	Size int64
	path string
}

// VideoStore persists uploaded videos on disk under per-course directories.
// Files are written to a staging area first and published by rename.
type VideoStore struct {
	root         string
	publicPrefix string
}

// NewVideoStore ensures the root and staging directories exist.
func NewVideoStore(root, publicPrefix string) (*VideoStore, error) {
	if root == "" {
		root = "./public/videos"
	}
	if publicPrefix == "" {
		publicPrefix = "/videos"
	}
	if err := os.MkdirAll(filepath.Join(root, stagingDir), 0o755); err != nil {
		return nil, fmt.Errorf("create video directories: %w", err)
	}
	return &VideoStore{root: root, publicPrefix: "/" + strings.Trim(publicPrefix, "/")}, nil
}

// Stage streams r into a freshly named staging file keeping ext. Streams longer
// than limit bytes are discarded and ErrTooLarge is returned.
func (s *VideoStore) Stage(r io.Reader, ext string, limit int64) (StagedFile, error) {
	name := uuid.NewString() + strings.ToLower(ext)
	target := filepath.Join(s.root, stagingDir, name)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return StagedFile{}, fmt.Errorf("create staged file: %w", err)
	}

	reader := r
	if limit > 0 {
		reader = io.LimitReader(r, limit+1)
	}
	written, copyErr := io.Copy(file, reader)
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(target)
		return StagedFile{}, fmt.Errorf("write staged file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(target)
		return StagedFile{}, fmt.Errorf("close staged file: %w", closeErr)
	case limit > 0 && written > limit:
		_ = os.Remove(target)
		return StagedFile{}, ErrTooLarge
	}

	return StagedFile{Name: name, Size: written, path: target}, nil
}

// PublicURL returns the public path a staged file will be served from once published.
func (s *VideoStore) PublicURL(courseID, name string) string {
	return path.Join(s.publicPrefix, courseID, name)
}

// Publish moves a staged file into its course directory.
func (s *VideoStore) Publish(staged StagedFile, courseID string) error {
	if staged.path == "" {
		return fmt.Errorf("publish video: file not staged")
	}
	dir, err := s.courseDir(courseID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare course directory: %w", err)
	}
	if err := os.Rename(staged.path, filepath.Join(dir, staged.Name)); err != nil {
		return fmt.Errorf("publish video: %w", err)
	}
	return nil
}

// Discard removes a staged file if present.
func (s *VideoStore) Discard(staged StagedFile) error {
	if staged.path == "" {
		return nil
	}
	if err := os.Remove(staged.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discard staged file: %w", err)
	}
	return nil
}

// Delete removes a published video addressed by its public URL.
func (s *VideoStore) Delete(publicURL string) error {
	target, err := s.Resolve(publicURL)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete video file: %w", err)
	}
	return nil
}

// Resolve maps a public URL to its on-disk path, rejecting anything outside the root.
func (s *VideoStore) Resolve(publicURL string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+publicURL), s.publicPrefix+"/")
	if rel == "" || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, stagingDir) {
		return "", fmt.Errorf("video url %q outside storage root", publicURL)
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// SweepStaging removes staged files older than ttl and returns their names.
func (s *VideoStore) SweepStaging(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	entries, err := os.ReadDir(filepath.Join(s.root, stagingDir))
	if err != nil {
		return nil, fmt.Errorf("read staging directory: %w", err)
	}

	removed := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return removed, fmt.Errorf("stat staged file: %w", err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.root, stagingDir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove staged file: %w", err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// Root exposes the storage root directory.
func (s *VideoStore) Root() string {
	return s.root
}

func (s *VideoStore) courseDir(courseID string) (string, error) {
	if courseID == "" || strings.ContainsAny(courseID, `/\`) || courseID == "." || courseID == ".." || courseID == stagingDir {
		return "", fmt.Errorf("invalid course directory %q", courseID)
	}
	return filepath.Join(s.root, courseID), nil
}
