package commands

import (
	"fmt"
	"time"

	"github.com/letsur-dev/claude-peak/internal/api"
	"github.com/letsur-dev/claude-peak/internal/auth"
	"github.com/letsur-dev/claude-peak/internal/config"
	"github.com/letsur-dev/claude-peak/internal/poller"
	"github.com/letsur-dev/claude-peak/internal/store"
)

// core is the wired credential/polling stack shared by every command.
type core struct {
	cfg    config.Config
	creds  *auth.Manager
	poller *poller.Poller
}

func buildCore() (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg)
	creds := auth.NewManager(store.NewFileStore(dir), client)
	p := poller.New(creds, client, time.Duration(cfg.PollingIntervalSeconds)*time.Second)

	return &core{cfg: cfg, creds: creds, poller: p}, nil
}

// validateInterval checks a user-supplied cadence against the
// enumerated choices.
func validateInterval(seconds int) error {
	for _, choice := range config.IntervalChoices {
		if seconds == choice {
			return nil
		}
	}
	return fmt.Errorf("interval must be one of %v seconds", config.IntervalChoices)
}
