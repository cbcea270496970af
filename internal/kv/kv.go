// Package kv is the shared local state layer: a single JSON file with
// last-writer-wins semantics, readable by every process without the daemon
// running. Reads always go to the file so concurrent processes observe
// each other's writes.
package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Logical keys shared across execution contexts.
const (
	KeyLastAccountID = "lastAccountId"
	KeyPendingEnd    = "allowanceEndDate.pending"
	KeySelection     = "familyActivitySelection"
	KeySessionStart  = "currentSessionStart"
)

// AccountEndKey returns the allowance deadline key for one account.
func AccountEndKey(accountID string) string {
	return "allowanceEndDate." + accountID
}

type Store struct {
	mu   sync.Mutex
	path string
}

func Open(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return values, nil
}

// save writes the full map through a temp file and rename, fsyncing before
// the swap, so readers in other processes never observe a torn write.
func (s *Store) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync state: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close state file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores key synchronously; it does not return until the value is
// durable.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

// GetTime reads a timestamp value; absent keys return ok=false.
func (s *Store) GetTime(key string) (time.Time, bool, error) {
	v, ok, err := s.Get(key)
	if err != nil || !ok {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse time for %q: %w", key, err)
	}
	return t, true, nil
}

func (s *Store) SetTime(key string, t time.Time) error {
	return s.Set(key, t.UTC().Format(time.RFC3339Nano))
}
