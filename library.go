package vds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/reoring/vds/migrate"
)

// Library is a ResourceManager backed by a directory. Identifiers are slash
// separated paths relative to the directory.
type Library struct {
	parser *Parser
	dir    string
	sheets map[string]*Datasheet
}

// NewLibrary returns a library rooted at dir and installs it as the parser's
// resource manager.
func NewLibrary(p *Parser, dir string) *Library {
	l := &Library{parser: p, dir: dir, sheets: make(map[string]*Datasheet)}
	p.Resources = l
	return l
}

// Path returns the file path of id.
func (l *Library) Path(id string) string { return filepath.Join(l.dir, filepath.FromSlash(id)) }

func (l *Library) IsResourceLoaded(id string) bool { return l.sheets[id] != nil }

func (l *Library) Resource(id string) (*Datasheet, bool) {
	ds, ok := l.sheets[id]
	return ds, ok
}

// Loaded returns the loaded datasheets sorted by id.
func (l *Library) Loaded() []*Datasheet {
	out := make([]*Datasheet, 0, len(l.sheets))
	for _, ds := range l.sheets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Add registers a datasheet created in memory and resolves pending links of
// every loaded datasheet against it.
func (l *Library) Add(ds *Datasheet) {
	l.sheets[ds.id] = ds
	l.retry()
}

// LoadResource loads id from disk: the file is migrated in place, parsed and
// registered, then unresolved dependencies that exist on disk are loaded too.
func (l *Library) LoadResource(id string) (*Datasheet, error) {
	if ds := l.sheets[id]; ds != nil {
		return ds, nil
	}
	if !l.parser.IsDatasheet(path.Ext(id)) {
		return nil, fmt.Errorf("vds: %q is not a datasheet resource", id)
	}
	file := l.Path(id)
	migrated, err := migrate.HandleMigration(file, l.parser.Binding)
	if err != nil {
		return nil, err
	}
	if migrated {
		l.parser.Logger.Info().Str("datasheet", id).Msg("migrated datasheet file")
	}
	ds := l.parser.NewDatasheet(id)
	if err := ds.LoadFile(file); err != nil {
		return nil, err
	}
	l.sheets[id] = ds
	for _, dep := range ds.PendingDependencies() {
		if l.sheets[dep] != nil {
			continue
		}
		if _, err := os.Stat(l.Path(dep)); errors.Is(err, fs.ErrNotExist) {
			l.parser.Logger.Warn().Str("datasheet", id).Str("dependency", dep).Msg("dependency not found")
			continue
		}
		if _, err := l.LoadResource(dep); err != nil {
			l.parser.Logger.Warn().Err(err).Str("datasheet", id).Str("dependency", dep).Msg("loading dependency")
		}
	}
	l.retry()
	return ds, nil
}

// Remove unloads id and clears every link other datasheets hold to it.
func (l *Library) Remove(id string) bool {
	ds := l.sheets[id]
	if ds == nil {
		return false
	}
	delete(l.sheets, id)
	for _, other := range l.sheets {
		other.OnDependencyRemoved(ds)
	}
	ds.Unload()
	return true
}

func (l *Library) retry() {
	for _, ds := range l.Loaded() {
		ds.RetryResolve()
	}
}
