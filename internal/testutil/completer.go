package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Completer is a scripted text-completion provider. Each prompt is answered
// by the first rule whose marker occurs in it.
type Completer struct {
	mu      sync.Mutex
	rules   []rule
	prompts []string
}

type rule struct {
	marker string
	reply  string
	err    error
}

// NewCompleter returns an empty script. Unmatched prompts fail.
func NewCompleter() *Completer {
	return &Completer{}
}

// On answers prompts containing marker with reply.
func (c *Completer) On(marker, reply string) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{marker: marker, reply: reply})
	return c
}

// OnError fails prompts containing marker with err.
func (c *Completer) OnError(marker string, err error) *Completer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, rule{marker: marker, err: err})
	return c
}

// Complete implements llm.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	for _, r := range c.rules {
		if strings.Contains(prompt, r.marker) {
			return r.reply, r.err
		}
	}
	return "", fmt.Errorf("testutil: no scripted reply for prompt %.60q", prompt)
}

// Calls counts the prompts that contained marker.
func (c *Completer) Calls(marker string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

// Prompts returns every prompt received, in order.
func (c *Completer) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}
