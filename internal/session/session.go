// Package session persists the current repository tree between invocations.
// Every ingestion replaces the stored session wholesale; selection changes
// replace its tree.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/unveilai/unveil/internal/types"
	"github.com/unveilai/unveil/internal/utils"
)

const (
	sessionDirectoryName = utils.ApplicationName
	sessionFileName      = "session.json"
	temporaryFilePattern = ".session-*.json"
	directoryPermissions = 0o700
	filePermissions      = 0o600

	errorCacheDirectoryFormat = "locate cache directory: %w"
	errorReadSessionFormat    = "read session %s: %w"
	errorDecodeSessionFormat  = "decode session %s: %w"
	errorWriteSessionFormat   = "write session %s: %w"
)

// ErrNoSession is returned by Load when nothing has been ingested yet.
var ErrNoSession = errors.New("no repository ingested yet; run `unveil ingest <directory|url>` first")

// Session is the persisted state of one ingestion.
type Session struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	Tree      []*types.FileNode `json:"tree"`
}

// New returns a session with a fresh identifier for a newly ingested tree.
func New(source string, tree []*types.FileNode) Session {
	now := time.Now().UTC()
	if tree == nil {
		tree = []*types.FileNode{}
	}
	return Session{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
		Tree:      tree,
	}
}

// WithTree returns a copy of the session holding tree.
func (session Session) WithTree(tree []*types.FileNode) Session {
	session.Tree = tree
	session.UpdatedAt = time.Now().UTC()
	return session
}

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore returns a store at path. An empty path selects the default
// location under the user cache directory.
func NewStore(path string) (Store, error) {
	if path != "" {
		return Store{path: path}, nil
	}
	cacheDirectory, cacheError := os.UserCacheDir()
	if cacheError != nil {
		return Store{}, fmt.Errorf(errorCacheDirectoryFormat, cacheError)
	}
	return Store{path: filepath.Join(cacheDirectory, sessionDirectoryName, sessionFileName)}, nil
}

// Path returns the location of the session file.
func (store Store) Path() string {
	return store.path
}

// Load returns the stored session or ErrNoSession when there is none.
func (store Store) Load() (Session, error) {
	content, readError := os.ReadFile(store.path)
	if errors.Is(readError, fs.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if readError != nil {
		return Session{}, fmt.Errorf(errorReadSessionFormat, store.path, readError)
	}
	var session Session
	if decodeError := json.Unmarshal(content, &session); decodeError != nil {
		return Session{}, fmt.Errorf(errorDecodeSessionFormat, store.path, decodeError)
	}
	if session.Tree == nil {
		session.Tree = []*types.FileNode{}
	}
	return session, nil
}

// Save writes session to a temporary file and renames it over the session
// file, so readers never observe a partial write.
func (store Store) Save(session Session) error {
	encoded, encodeError := json.Marshal(session)
	if encodeError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, encodeError)
	}
	directory := filepath.Dir(store.path)
	if makeError := os.MkdirAll(directory, directoryPermissions); makeError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, makeError)
	}
	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePattern)
	if createError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, createError)
	}
	temporaryPath := temporaryFile.Name()
	defer os.Remove(temporaryPath)

	if _, writeError := temporaryFile.Write(encoded); writeError != nil {
		temporaryFile.Close()
		return fmt.Errorf(errorWriteSessionFormat, store.path, writeError)
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, closeError)
	}
	if chmodError := os.Chmod(temporaryPath, filePermissions); chmodError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, chmodError)
	}
	if renameError := os.Rename(temporaryPath, store.path); renameError != nil {
		return fmt.Errorf(errorWriteSessionFormat, store.path, renameError)
	}
	return nil
}

// Clear removes the session file. A missing file is not an error.
func (store Store) Clear() error {
	if removeError := os.Remove(store.path); removeError != nil && !errors.Is(removeError, fs.ErrNotExist) {
		return removeError
	}
	return nil
}
