package sync

import (
	"github.com/natikgadzhi/notion-mirror/internal/notion"
	"github.com/natikgadzhi/notion-mirror/internal/storage"
)

// Binding ties one configured database to the destination it mirrors
// into, together with the property mapping applied on render.
type Binding struct {
	DatabaseID  string
	DataSources []notion.DataSourceInfo
	Store       storage.Store
	KeyMap      map[string]string
	Includes    map[string]struct{}
}

// Bindings indexes the configured databases for lookups by database
// or data source id.
type Bindings struct {
	all []*Binding
}

// NewBindings wraps bindings in configuration order.
func NewBindings(all []*Binding) *Bindings {
	return &Bindings{all: all}
}

// All returns the bindings in configuration order.
func (b *Bindings) All() []*Binding {
	return b.all
}

// ByDatabaseID finds the binding for a database id.
func (b *Bindings) ByDatabaseID(id string) (*Binding, bool) {
	if id == "" {
		return nil, false
	}
	for _, binding := range b.all {
		if binding.DatabaseID == id {
			return binding, true
		}
	}
	return nil, false
}

// ByDataSourceID finds the binding owning a data source id.
func (b *Bindings) ByDataSourceID(id string) (*Binding, bool) {
	if id == "" {
		return nil, false
	}
	for _, binding := range b.all {
		for _, ds := range binding.DataSources {
			if ds.ID == id {
				return binding, true
			}
		}
	}
	return nil, false
}

// ForParent resolves a page parent to its binding. The data source id
// takes precedence over the database id when both are present.
func (b *Bindings) ForParent(parent notion.Parent) (*Binding, bool) {
	if binding, ok := b.ByDataSourceID(parent.DataSourceID); ok {
		return binding, true
	}
	return b.ByDatabaseID(parent.DatabaseID)
}
