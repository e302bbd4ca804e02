// Package catalog persists generated rule sets in a badger database,
// keyed by tiling name. A catalog with no path lives in memory.
package catalog

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/tess-systems/gotes/gotes"
	"github.com/tess-systems/gotes/libtes"
)

var (
	gCatalogStateKey = []byte{0x00, 0x00, 0x01}
	gRulesPrefix     = []byte("rules/")
)

const (
	majorVers byte = 1
	minorVers byte = 0
)

// Opts specifies params for opening a rule catalog.
type Opts struct {
	// Path of the database directory; empty means in-memory.
	Path     string
	ReadOnly bool
}

// Catalog is a db wrapper for a rule-set catalog.
type Catalog struct {
	db       *badger.DB
	readOnly bool
}

func Open(opts Opts) (*Catalog, error) {
	if opts.ReadOnly && opts.Path == "" {
		return nil, errors.Wrap(gotes.ErrBadCatalogKey, "Path must be specified for a read-only catalog")
	}

	dbOpts := badger.DefaultOptions(opts.Path)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // single writer, so disable for performance
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false
	if opts.Path == "" {
		dbOpts.InMemory = true
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		db:       db,
		readOnly: opts.ReadOnly,
	}

	err = cat.checkState()
	if err != nil {
		cat.Close()
		return nil, err
	}
	return cat, nil
}

func (cat *Catalog) checkState() error {
	if cat.readOnly {
		return cat.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(gCatalogStateKey)
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				if len(val) != 2 || val[0] != majorVers {
					return errors.New("catalog version is incompatible")
				}
				return nil
			})
		})
	}
	return cat.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err == badger.ErrKeyNotFound {
			return txn.Set(gCatalogStateKey, []byte{majorVers, minorVers})
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 2 || val[0] != majorVers {
				return errors.New("catalog version is incompatible")
			}
			return nil
		})
	})
}

func (cat *Catalog) IsReadOnly() bool { return cat.readOnly }

func (cat *Catalog) Close() error {
	if cat.db != nil {
		err := cat.db.Close()
		cat.db = nil
		return err
	}
	return nil
}

func rulesKey(name string) ([]byte, error) {
	if name == "" {
		return nil, gotes.ErrBadCatalogKey
	}
	return append(append([]byte{}, gRulesPrefix...), name...), nil
}

// Store persists a rule set under its tiling's name, in the same text
// format the exporter writes.
func (cat *Catalog) Store(rs *gotes.RuleSet) error {
	if cat.readOnly {
		return errors.Wrap(gotes.ErrBadCatalogKey, "catalog is read-only")
	}
	key, err := rulesKey(rs.Tiling.Name)
	if err != nil {
		return err
	}
	val := []byte(libtes.ExportString(rs))
	return cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Load retrieves the rule set stored for the given tiling.
func (cat *Catalog) Load(t *gotes.Tiling) (*gotes.RuleSet, error) {
	key, err := rulesKey(t.Name)
	if err != nil {
		return nil, err
	}
	var src []byte
	err = cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		src, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, errors.Wrap(gotes.ErrNotInCatalog, t.Name)
	}
	if err != nil {
		return nil, err
	}
	return libtes.ParseRules(t, string(src))
}

// List returns the names of every stored rule set.
func (cat *Catalog) List() ([]string, error) {
	var names []string
	err := cat.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.PrefetchValues = false
		itOpts.Prefix = gRulesPrefix
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			names = append(names, string(k[len(gRulesPrefix):]))
		}
		return nil
	})
	return names, err
}
