// Package hooking lets observers attach to the harness components without
// the components knowing who is watching.
package hooking

// HookPos names a point where a component invokes its hooks.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos

	// Item is the subject of the event, such as a lookup record or a
	// buffered element. Detail is extra data that some positions attach.
	Item   any
	Detail any
}

// A Hook reacts to hook invocations.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// Hookable is a component that hooks can attach to. Hooks are registered
// before the run starts and are never removed.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	InvokeHook(ctx HookCtx)
}

// HookableBase implements Hookable for embedding. The zero value is ready
// to use.
type HookableBase struct {
	hooks []Hook
}

// AcceptHook registers a hook. Registering the same hook value twice
// panics; HookFunc values are not compared.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, existing := range h.hooks {
			if existing == hook {
				panic("duplicated hook")
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// InvokeHook calls every registered hook in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
