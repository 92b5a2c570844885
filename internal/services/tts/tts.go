// Package tts synthesizes speech from translated text. Two providers are
// supported, a local edge-tts binary and the Lovo HTTP API, plus a fallback
// chain that tries them in order.
package tts

import (
	"context"
	"fmt"
	"strings"

	"dubflow/internal/services"
	"dubflow/internal/task"
)

// Synthesizer renders text to an audio file.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, outPath string) error
}

// Chain tries each synthesizer in order, returning on the first success.
type Chain struct {
	providers []Synthesizer
}

// NewChain builds a fallback chain. Nil providers are dropped.
func NewChain(providers ...Synthesizer) *Chain {
	kept := make([]Synthesizer, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &Chain{providers: kept}
}

// Name identifies the chain by its member providers.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		names = append(names, p.Name())
	}
	return "auto-fallback(" + strings.Join(names, ",") + ")"
}

// Synthesize attempts each provider until one succeeds. The returned error
// aggregates every provider's failure when all of them fail.
func (c *Chain) Synthesize(ctx context.Context, text, outPath string) error {
	if len(c.providers) == 0 {
		return services.Wrap(services.ErrConfiguration, "", "tts", "no synthesizers configured", nil)
	}
	var failures []string
	for _, p := range c.providers {
		err := p.Synthesize(ctx, text, outPath)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return services.Wrap(services.ErrProvider, "", "tts",
		"all synthesizers failed: "+strings.Join(failures, "; "), nil)
}

// ForMode selects the synthesizer matching a task's dub mode.
func ForMode(mode string, edge, lovo Synthesizer) Synthesizer {
	switch mode {
	case task.DubModeEdge:
		return edge
	case task.DubModeLovo:
		return lovo
	default:
		return NewChain(edge, lovo)
	}
}
