package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/emcshop-dev/emcshop/internal/config"
)

// repo is an initialized history repo on disk.
type repo struct {
	root string
	cfg  *config.Config
}

func openRepo(dir string) (*repo, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("%w (run 'emcshop init' first)", err)
	}
	return &repo{root: root, cfg: cfg}, nil
}

func (r *repo) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(r.root, p)
}

func (r *repo) historyDir() string { return r.path(r.cfg.Output.HistoryDir) }
func (r *repo) logDir() string     { return r.path(r.cfg.Output.LogDir) }

// parseDate accepts an RFC 3339 timestamp or a local calendar date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}
