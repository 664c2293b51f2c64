package logging

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

// LoadFiltersFile reads a JSON array of log filters from path and installs them.
// A missing file leaves the current filters in place and is not an error.
func LoadFiltersFile(path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read log filters: %w", err)
	}

	var filters []logfilter.LogFilter
	if err := json.Unmarshal(data, &filters); err != nil {
		return 0, fmt.Errorf("failed to parse log filters %s: %w", path, err)
	}

	SetFilters(filters)
	return len(filters), nil
}
