package storage

import (
	"context"
	"errors"
	"os"
)

// ErrStateCorrupt marks a state or cache document that exists but cannot be
// decoded. Callers treat it as absent.
var ErrStateCorrupt = errors.New("storage: state corrupt")

// StateStore persists the hysteresis input between cycles.
type StateStore interface {
	LoadState(ctx context.Context) (PersistedState, error)
	SaveState(ctx context.Context, state PersistedState) error
}

// FileStateStore keeps the state in a JSON file.
type FileStateStore struct {
	path string
}

// NewFileStateStore returns a store backed by path.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// LoadState returns the persisted state. A missing file yields the empty state
// with no error; an undecodable one yields the empty state and ErrStateCorrupt.
func (s *FileStateStore) LoadState(_ context.Context) (PersistedState, error) {
	var state PersistedState
	if err := ReadJSONFile(s.path, &state); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return PersistedState{}, nil
		}
		return PersistedState{}, err
	}
	return state, nil
}

// SaveState atomically replaces the state file.
func (s *FileStateStore) SaveState(_ context.Context, state PersistedState) error {
	return WriteJSONFile(s.path, state)
}

// FilePayloadStore keeps the most recent payload in a JSON file.
type FilePayloadStore struct {
	path string
}

// NewFilePayloadStore returns a store backed by path.
func NewFilePayloadStore(path string) *FilePayloadStore {
	return &FilePayloadStore{path: path}
}

// SavePayload atomically replaces the payload file.
func (s *FilePayloadStore) SavePayload(payload Payload) error {
	return WriteJSONFile(s.path, payload)
}

// LoadPayload reads the most recent payload.
func (s *FilePayloadStore) LoadPayload() (Payload, error) {
	var payload Payload
	if err := ReadJSONFile(s.path, &payload); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

// Path returns the file the store writes.
func (s *FilePayloadStore) Path() string {
	return s.path
}
