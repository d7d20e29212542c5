// Package action implements the provider's machine actions as a chain of
// middleware, each doing its part and handing the environment to the next.
package action

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/eugenenazirov/vagrant-fusion/internal/compute"
	"github.com/eugenenazirov/vagrant-fusion/internal/providerconfig"
)

// UI receives user-facing progress messages.
type UI interface {
	Info(msg string)
}

// WriterUI prints each message on its own line.
type WriterUI struct {
	W io.Writer
}

// Info implements UI.
func (u WriterUI) Info(msg string) {
	fmt.Fprintln(u.W, msg)
}

// RecordingUI keeps messages in memory.
type RecordingUI struct {
	mu       sync.Mutex
	messages []string
}

// Info implements UI.
func (u *RecordingUI) Info(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.messages = append(u.messages, msg)
}

// Messages returns a copy of the recorded messages.
func (u *RecordingUI) Messages() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.messages...)
}

// Machine identifies the instance an action works on.
type Machine struct {
	ID string
}

// Env is the state shared along a chain.
type Env struct {
	Machine Machine
	Config  *providerconfig.Config
	Backend compute.Backend
	UI      UI

	// ForceHalt stops the instance without a clean shutdown.
	ForceHalt bool

	// Compute is set by ConnectFusion.
	Compute compute.Handle
}

// Handler runs an action against env.
type Handler func(ctx context.Context, env *Env) error

// Middleware wraps the rest of a chain.
type Middleware func(next Handler) Handler

// Chain builds a handler running mws in order, outermost first.
func Chain(mws ...Middleware) Handler {
	var h Handler = func(context.Context, *Env) error { return nil }
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
