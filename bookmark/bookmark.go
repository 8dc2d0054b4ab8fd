// Package bookmark persists the tap's Singer state between runs, either as a
// JSON file or as rows in a SQL database.
package bookmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/5amCurfew/tap-pagerduty/models"
	util "github.com/5amCurfew/tap-pagerduty/util"
	log "github.com/sirupsen/logrus"
)

// Store loads state before a run and saves it at each checkpoint
type Store interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, state *models.State) error
	Close() error
}

// Open picks the database store when cfg names one, else the state file.
// An empty statePath gives a store that starts empty and persists nothing.
func Open(ctx context.Context, cfg *models.Config, statePath string) (Store, error) {
	if cfg.StateDB != "" {
		return OpenDB(ctx, cfg.StateDB)
	}
	return &FileStore{Path: statePath}, nil
}

// FileStore keeps state in a Singer state JSON file
type FileStore struct {
	Path string
}

// stateMessage is a STATE line as written to stdout, accepted as a state file
type stateMessage struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (f *FileStore) Load(_ context.Context) (*models.State, error) {
	state := models.NewState()
	if f.Path == "" {
		return state, nil
	}

	stateFile, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		log.WithFields(log.Fields{"path": f.Path}).Info("state file not found, starting from empty state")
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading state file %s: %w", f.Path, err)
	}

	var message stateMessage
	if err := json.Unmarshal(stateFile, &message); err == nil && message.Type == "STATE" && len(message.Value) > 0 {
		stateFile = message.Value
	}

	if err := json.Unmarshal(stateFile, state); err != nil {
		return nil, fmt.Errorf("error parsing state file %s: %w", f.Path, err)
	}
	return state, nil
}

func (f *FileStore) Save(_ context.Context, state *models.State) error {
	if f.Path == "" {
		return nil
	}
	if err := util.WriteJSON(f.Path, state); err != nil {
		return fmt.Errorf("error saving state: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error {
	return nil
}
