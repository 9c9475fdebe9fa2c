package registry

import (
	"context"

	"github.com/chimeradev/regaccess/backend"
	"github.com/chimeradev/regaccess/catalogue"
	"github.com/chimeradev/regaccess/deverr"
	"github.com/chimeradev/regaccess/device"
)

// Environment resolves device aliases to opened device.Device handles: it
// holds the set of known DeviceInfo entries (loaded from one or more DMap
// files, or added directly) and a backend.Factory to construct backends
// from each entry's URI.
type Environment struct {
	factory *backend.Factory
	byAlias map[string]DeviceInfo
}

// NewEnvironment returns an Environment that builds backends with factory.
func NewEnvironment(factory *backend.Factory) *Environment {
	return &Environment{factory: factory, byAlias: make(map[string]DeviceInfo)}
}

// AddDMapFile loads path and merges its entries into the environment. A
// later entry for an alias already known replaces the earlier one.
func (e *Environment) AddDMapFile(path string) error {
	infos, err := FromDMapFile(path)
	if err != nil {
		return err
	}
	for _, info := range infos {
		e.byAlias[info.Alias] = info
	}
	return nil
}

// AddDeviceInfo registers info directly, without going through a DMap file.
func (e *Environment) AddDeviceInfo(info DeviceInfo) {
	e.byAlias[info.Alias] = info
}

// Lookup returns the DeviceInfo registered for alias, or a LogicError if
// alias is unknown.
func (e *Environment) Lookup(alias string) (DeviceInfo, error) {
	info, ok := e.byAlias[alias]
	if !ok {
		return DeviceInfo{}, deverr.NewLogic("registry: unknown device alias %q", alias)
	}
	return info, nil
}

// Aliases returns every known alias, in no particular order.
func (e *Environment) Aliases() []string {
	out := make([]string, 0, len(e.byAlias))
	for alias := range e.byAlias {
		out = append(out, alias)
	}
	return out
}

// OpenDevice resolves alias, parses its URI, loads its map file into a
// catalogue, builds the backend through the factory and opens it, returning
// a ready device.Device. The backend is opened but the returned Device is
// not otherwise distinguished from one built directly with device.New.
func (e *Environment) OpenDevice(ctx context.Context, alias string) (*device.Device, error) {
	info, err := e.Lookup(alias)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseURI(info.URI)
	if err != nil {
		return nil, err
	}

	var cat *catalogue.Catalogue
	if info.MapFile != "" {
		mf, err := catalogue.FromMapFile(info.MapFile)
		if err != nil {
			return nil, deverr.WrapRuntime("registry: loading map file for alias "+alias, err)
		}
		cat = mf.Catalogue()
	} else {
		cat = catalogue.New()
	}

	be, err := e.factory.Build(parsed.Interface, info.URI, cat)
	if err != nil {
		return nil, deverr.WrapRuntime("registry: building backend for alias "+alias, err)
	}

	if err := be.Open(ctx); err != nil {
		return nil, err
	}

	return device.New(be), nil
}
