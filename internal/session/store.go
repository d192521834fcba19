package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"verticlipper/internal/apperr"
	"verticlipper/internal/assets"
	"verticlipper/internal/filesystem"
	"verticlipper/internal/logging"

	"github.com/google/uuid"
)

// Slot is the filename prefix identifying an asset's role in a session.
type Slot string

const (
	SlotVideo      Slot = "video"
	SlotBackground Slot = "bg"
)

// stagingDir holds in-flight upload parts; it is swept like any session.
const stagingDir = ".staging"

// OverlaySlot returns the slot for the n-th overlay, counting from 1.
func OverlaySlot(n int) Slot {
	return Slot(fmt.Sprintf("overlay%d", n))
}

// Store holds session directories and resolves assets by role.
type Store interface {
	// Create allocates a new, empty session and returns its id.
	Create() (string, error)
	// Commit moves tempPath into the session as "<slot>-<originalName>".
	Commit(sessionID string, slot Slot, tempPath, originalName string) (string, error)
	// Resolve returns the first asset in the session carrying slot's prefix.
	Resolve(sessionID string, slot Slot) (string, error)
	// Exists reports whether the session directory is present.
	Exists(sessionID string) bool
	// Discard removes the session and everything in it.
	Discard(sessionID string) error
	// Stage creates a scratch directory on the same volume as the sessions.
	Stage() (string, error)
}

// FSStore is a Store backed by directories under one root.
type FSStore struct {
	root  string
	retry filesystem.RetryConfig
}

// NewFSStore creates a store rooted at root, creating it if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload root: %w", err)
	}
	return &FSStore{root: root, retry: filesystem.DefaultRetryConfig()}, nil
}

// Root returns the upload root, which the sweeper also cleans.
func (s *FSStore) Root() string {
	return s.root
}

// ValidID reports whether id is a canonical UUID string, which also
// guarantees it is safe to join to a path.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func (s *FSStore) dir(sessionID string) (string, error) {
	if !ValidID(sessionID) {
		return "", apperr.NotFound(apperr.CodeSessionNotFound, "Session not found: %s", sessionID)
	}
	return filepath.Join(s.root, sessionID), nil
}

// Create implements Store.
func (s *FSStore) Create() (string, error) {
	id := uuid.NewString()
	if err := os.Mkdir(filepath.Join(s.root, id), 0o755); err != nil {
		return "", apperr.Internal("Failed to create session", err)
	}
	logging.Debug("Created session %s", id)
	return id, nil
}

// Stage implements Store.
func (s *FSStore) Stage() (string, error) {
	parent := filepath.Join(s.root, stagingDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", apperr.Internal("Failed to create staging directory", err)
	}
	dir, err := os.MkdirTemp(parent, "upload-")
	if err != nil {
		return "", apperr.Internal("Failed to create staging directory", err)
	}
	return dir, nil
}

// Commit implements Store.
func (s *FSStore) Commit(sessionID string, slot Slot, tempPath, originalName string) (string, error) {
	dir, err := s.dir(sessionID)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(dir, string(slot)+"-"+assets.SanitizeFilename(originalName))
	if err := filesystem.RenameWithRetry(tempPath, dest, s.retry); err != nil {
		return "", apperr.Internal("Failed to store upload", err)
	}

	logging.Debug("Committed %s to session %s as %s", filepath.Base(tempPath), sessionID, filepath.Base(dest))
	return dest, nil
}

// Resolve implements Store.
func (s *FSStore) Resolve(sessionID string, slot Slot) (string, error) {
	dir, err := s.dir(sessionID)
	if err != nil {
		return "", err
	}

	entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NotFound(apperr.CodeSessionNotFound, "Session not found: %s", sessionID)
		}
		return "", apperr.Internal("Failed to read session", err)
	}

	prefix := string(slot) + "-"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(dir, e.Name()), nil
		}
	}

	return "", apperr.NotFound(apperr.CodeSessionAssetMissing, "No %s asset in session %s", slot, sessionID)
}

// Exists implements Store.
func (s *FSStore) Exists(sessionID string) bool {
	dir, err := s.dir(sessionID)
	if err != nil {
		return false
	}
	info, err := filesystem.StatWithRetry(dir, s.retry)
	return err == nil && info.IsDir()
}

// Discard implements Store.
func (s *FSStore) Discard(sessionID string) error {
	dir, err := s.dir(sessionID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return apperr.Internal("Failed to discard session", err)
	}
	logging.Debug("Discarded session %s", sessionID)
	return nil
}
