package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	util "github.com/5amCurfew/tap-pagerduty/util"
)

// AppendToHistory adds metric to the JSON array kept at path
func AppendToHistory(path string, metric ExecutionMetric) error {
	var history []ExecutionMetric

	historyFile, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("error reading history file %s: %w", path, err)
	case len(historyFile) > 0:
		if err := json.Unmarshal(historyFile, &history); err != nil {
			return fmt.Errorf("error parsing history file %s: %w", path, err)
		}
	}

	history = append(history, metric)
	return util.WriteJSON(path, history)
}
