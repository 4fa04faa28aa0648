// Package constellation holds the set of constellations the service answers for.
package constellation

import (
	"errors"
	"fmt"
)

// ErrUnknown is returned for a constellation id outside the registry.
var ErrUnknown = errors.New("unknown constellation")

// Constellation maps a public id to the upstream catalog group it is built from.
type Constellation struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Group string `json:"group"`
}

var registry = []Constellation{
	{ID: "iridium", Name: "Iridium NEXT", Group: "iridium-NEXT"},
	{ID: "starlink", Name: "Starlink", Group: "starlink"},
	{ID: "kuiper", Name: "Project Kuiper", Group: "kuiper"},
}

// Lookup returns the constellation for id. Ids are case-sensitive.
func Lookup(id string) (Constellation, error) {
	for _, c := range registry {
		if c.ID == id {
			return c, nil
		}
	}
	return Constellation{}, fmt.Errorf("%w: %q", ErrUnknown, id)
}

// All returns every registered constellation in a stable order.
func All() []Constellation {
	return append([]Constellation(nil), registry...)
}

// IDs returns the registered ids in the same order as All.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, c := range registry {
		ids[i] = c.ID
	}
	return ids
}
