package config

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-terminal/logger"
	"github.com/arloliu/go-terminal/terminal"
)

// Registry holds opened terminals by name. It is safe for concurrent use.
type Registry struct {
	terms  *xsync.MapOf[string, terminal.Terminal]
	logger logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(l logger.Logger) *Registry {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Registry{
		terms:  xsync.NewMapOf[string, terminal.Terminal](),
		logger: l,
	}
}

// OpenAll opens every definition of f and registers the terminals. On failure the
// terminals opened by this call are closed again.
func (r *Registry) OpenAll(ctx context.Context, f *File) error {
	opened := make([]string, 0, len(f.Terminals))

	for _, def := range f.Terminals {
		if _, ok := r.terms.Load(def.Name); ok {
			r.rollback(opened)
			return fmt.Errorf("%w: %q", ErrDuplicateName, def.Name)
		}

		term, err := def.Open(ctx, r.logger)
		if err != nil {
			r.rollback(opened)
			return err
		}

		if err := r.Add(def.Name, term); err != nil {
			_ = term.Close()
			r.rollback(opened)

			return err
		}
		opened = append(opened, def.Name)

		r.logger.Info("config: terminal opened", "name", def.Name, "kind", string(def.Kind))
	}

	return nil
}

func (r *Registry) rollback(names []string) {
	for _, name := range names {
		if term, ok := r.terms.LoadAndDelete(name); ok {
			_ = term.Close()
		}
	}
}

// Add registers term under name. It fails if the name is taken.
func (r *Registry) Add(name string, term terminal.Terminal) error {
	if _, loaded := r.terms.LoadOrStore(name, term); loaded {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	return nil
}

// Get returns the terminal registered under name.
func (r *Registry) Get(name string) (terminal.Terminal, bool) {
	return r.terms.Load(name)
}

// Remove unregisters and returns the terminal registered under name without closing it.
func (r *Registry) Remove(name string) (terminal.Terminal, bool) {
	return r.terms.LoadAndDelete(name)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.terms.Size())
	r.terms.Range(func(name string, _ terminal.Terminal) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

// Len returns the number of registered terminals.
func (r *Registry) Len() int {
	return r.terms.Size()
}

// CloseAll closes and unregisters every terminal. It returns the joined close errors.
func (r *Registry) CloseAll() error {
	var errs []error

	for _, name := range r.Names() {
		term, ok := r.terms.LoadAndDelete(name)
		if !ok {
			continue
		}

		if err := term.Close(); err != nil {
			r.logger.Warn("config: close failed", "name", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
