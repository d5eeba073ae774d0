package service

import (
	"fmt"
	"sort"
	"strings"

	"paper-reader/internal/application/port/output"
)

var _ output.BackendRegistry = (*BackendRegistryImpl)(nil)

type BackendRegistryImpl struct {
	factories map[string]output.BackendFactory
}

func NewBackendRegistry() *BackendRegistryImpl {
	return &BackendRegistryImpl{
		factories: make(map[string]output.BackendFactory),
	}
}

func (r *BackendRegistryImpl) Register(name string, factory output.BackendFactory) {
	r.factories[strings.ToLower(name)] = factory
}

func (r *BackendRegistryImpl) Get(name string) (output.BackendFactory, bool) {
	factory, ok := r.factories[strings.ToLower(name)]
	return factory, ok
}

func (r *BackendRegistryImpl) Names() []string {
	result := make([]string, 0, len(r.factories))
	for name := range r.factories {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Build resolves name and constructs the backend with cfg.
func Build(registry output.BackendRegistry, name string, cfg output.BackendConfig) (output.TaskBackend, error) {
	factory, ok := registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown image backend %q (available: %s)", name, strings.Join(registry.Names(), ", "))
	}
	backend, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", name, err)
	}
	return backend, nil
}
