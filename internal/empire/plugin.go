package empire

import (
	"fmt"
	"sort"
)

// Plugin subscribes extraction logic (usually for one skin) to a client's pages and stores.
type Plugin interface {
	Name() string
	Register(client *Client)
}

// ErrUnknownPlugin is returned by Registry.Lookup.
var ErrUnknownPlugin = fmt.Errorf("unknown plugin")

// Registry maps plugin names to plugins so they can be picked from configuration.
type Registry struct {
	plugins map[string]Plugin
}

func NewRegistry(plugins ...Plugin) Registry {
	r := Registry{plugins: map[string]Plugin{}}
	for _, p := range plugins {
		r.plugins[p.Name()] = p
	}
	return r
}

// Lookup returns the plugins with the given names in the order they were given.
func (r Registry) Lookup(names ...string) ([]Plugin, error) {
	out := make([]Plugin, len(names))
	for i, name := range names {
		p, ok := r.plugins[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownPlugin, name, r.Names())
		}
		out[i] = p
	}
	return out, nil
}

// Names returns every registered name, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
