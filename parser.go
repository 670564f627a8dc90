package vds

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/reoring/vds/schema"
)

// ResourceManager loads and caches datasheets by identifier.
type ResourceManager interface {
	IsResourceLoaded(id string) bool
	Resource(id string) (*Datasheet, bool)
	// LoadResource returns the loaded datasheet, loading it first if needed.
	LoadResource(id string) (*Datasheet, error)
}

// Parser is the explicit context passed to load, resolve and save: it
// resolves class and enum definitions and finds other datasheets.
type Parser struct {
	Binding   *schema.Binding
	Resources ResourceManager // optional
	Logger    zerolog.Logger
	Options   Options
}

// NewParser returns a parser for b that logs nowhere.
func NewParser(b *schema.Binding) *Parser {
	return &Parser{Binding: b, Logger: zerolog.Nop()}
}

// ClassDefinition returns the class called name or nil.
func (p *Parser) ClassDefinition(name string) *schema.Class {
	if p.Binding == nil {
		return nil
	}
	return p.Binding.Class(name)
}

// Enum returns the enum called name or nil.
func (p *Parser) Enum(name string) *schema.Enum {
	if p.Binding == nil {
		return nil
	}
	return p.Binding.Enum(name)
}

// IsDatasheet reports whether files with extension ext are datasheets.
func (p *Parser) IsDatasheet(ext string) bool {
	return p.Binding != nil && p.Binding.IsDatasheet(ext)
}

// NewDatasheet returns an empty datasheet identified by id.
func (p *Parser) NewDatasheet(id string) *Datasheet { return newDatasheet(p, id) }

// Instantiate returns the datasheet id through the resource manager.
func (p *Parser) Instantiate(id string) (*Datasheet, error) {
	if p.Resources == nil {
		return nil, ErrNoResources
	}
	if ds, ok := p.Resources.Resource(id); ok && ds != nil {
		return ds, nil
	}
	ds, err := p.Resources.LoadResource(id)
	if err != nil {
		return nil, fmt.Errorf("vds: instantiating %q: %w", id, err)
	}
	return ds, nil
}

// lookup returns an already loaded datasheet. It never loads, so resolution
// during a load cannot recurse.
func (p *Parser) lookup(id string) *Datasheet {
	if p.Resources == nil || id == "" || !p.Resources.IsResourceLoaded(id) {
		return nil
	}
	ds, _ := p.Resources.Resource(id)
	return ds
}
