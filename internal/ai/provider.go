package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Narrator writes a Narrative for a period digest.
type Narrator interface {
	Narrate(ctx context.Context, d Digest) (*Narrative, error)
}

// Provider names.
const (
	ProviderClaudeCLI = "claude-cli"
	ProviderOpenAI    = "openai"
	ProviderNone      = "none"
)

// Options selects and configures a narrator.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewNarrator returns the narrator for opts.Provider. The "none" provider
// returns a nil Narrator and no error.
func NewNarrator(opts Options, logger *slog.Logger) (Narrator, error) {
	switch opts.Provider {
	case ProviderClaudeCLI, "":
		c := NewClaudeCLI(opts.Model, logger)
		c.Timeout = opts.Timeout
		return c, nil
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider needs an API key: set OPENAI_API_KEY or [ai] api_key")
		}
		o := NewOpenAI(opts.APIKey, opts.BaseURL, opts.Model, logger)
		o.Timeout = opts.Timeout
		return o, nil
	case ProviderNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", opts.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
