package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON file per session in a directory. The CLI uses
// it for its stored sign-in; a single-instance website can use it too.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed. An empty baseDir means
// $XDG_CONFIG_HOME/dbdev/sessions.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("get config dir: %w", err)
		}
		baseDir = filepath.Join(cfgDir, "dbdev", "sessions")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// sessionPath never leaves baseDir: only the last element of the ID is used.
func (s *FileStore) sessionPath(sessionID string) string {
	return filepath.Join(s.baseDir, filepath.Base(sessionID)+".json")
}

// readFile decodes the session at path. A missing file is (nil, nil).
func readFile(path string) (*Session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", filepath.Base(path), err)
	}
	return &sess, nil
}

// Get returns the session, or nil when it is missing or expired. Expired
// files are removed.
func (s *FileStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	path := s.sessionPath(sessionID)
	sess, err := readFile(path)
	s.mu.RUnlock()
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.IsExpired() {
		s.mu.Lock()
		os.Remove(path)
		s.mu.Unlock()
		return nil, nil
	}
	return sess, nil
}

// Set writes the session through a temporary file so readers never see a
// partial write. Files are readable by the owner only.
func (s *FileStore) Set(ctx context.Context, sess *Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(s.baseDir, ".session-*")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.sessionPath(sess.ID)); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting a missing session is not an error.
func (s *FileStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.sessionPath(sessionID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Cleanup removes expired and unreadable session files.
func (s *FileStore) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*.json"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sess, err := readFile(path); err != nil || (sess != nil && sess.IsExpired()) {
			os.Remove(path)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }

// Path returns the session directory.
func (s *FileStore) Path() string { return s.baseDir }

// cliSessionID names the file holding the CLI sign-in.
const cliSessionID = "cli"

// CLIStore is the single stored sign-in of the CLI.
type CLIStore struct {
	store     *FileStore
	sessionID string
}

// NewCLIStore opens the CLI session under baseDir ("" for the default
// directory).
func NewCLIStore(baseDir string) (*CLIStore, error) {
	store, err := NewFileStore(baseDir)
	if err != nil {
		return nil, err
	}
	return &CLIStore{store: store, sessionID: cliSessionID}, nil
}

// GetSession returns the stored sign-in, or nil.
func (c *CLIStore) GetSession(ctx context.Context) (*Session, error) {
	return c.store.Get(ctx, c.sessionID)
}

// SaveSession stores sess as the CLI sign-in, replacing its ID.
func (c *CLIStore) SaveSession(ctx context.Context, sess *Session) error {
	sess.ID = c.sessionID
	return c.store.Set(ctx, sess)
}

func (c *CLIStore) DeleteSession(ctx context.Context) error {
	return c.store.Delete(ctx, c.sessionID)
}

// Path returns the session file path.
func (c *CLIStore) Path() string { return c.store.sessionPath(c.sessionID) }

// Store returns the underlying file store.
func (c *CLIStore) Store() Store { return c.store }

// SessionID returns the ID the CLI session is stored under.
func (c *CLIStore) SessionID() string { return c.sessionID }
