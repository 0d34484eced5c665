package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"LookTrainer/internal/domain"
	"LookTrainer/internal/ports"
)

// FileSink writes the latest compiled ruleset as JSON for the downstream filter.
type FileSink struct {
	path string
}

var _ ports.RulesetSink = (*FileSink)(nil)

// NewFileSink targets path; parent directories are created on first write.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Put replaces the file atomically via a temp file and rename.
func (s *FileSink) Put(_ context.Context, ruleset domain.CompiledRuleset) error {
	raw, err := json.MarshalIndent(ruleset, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ruleset: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write ruleset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close ruleset: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename ruleset: %w", err)
	}
	return nil
}
