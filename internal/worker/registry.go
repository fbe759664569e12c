package worker

import (
	"context"
	"fmt"

	"github.com/mariachi-loyalty/dispatch/internal/task"
)

// HandlerFunc is a task body. It must convert every fault into a structured
// Result — the pool treats a panic as a bug and converts it, but handlers
// should never rely on that.
type HandlerFunc func(ctx context.Context, t task.Task) task.Result

// Registry maps task names to handlers. Populated once at startup, before
// any pool starts, and read-only afterwards — no locking needed.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a task name. Registering the same name twice
// is a wiring bug and startup-fatal.
func (r *Registry) Register(name string, h HandlerFunc) error {
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler already registered for task %q", name)
	}
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler for a task name.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	h, ok := r.handlers[name]
	return h, ok
}
