package detect

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Registration pairs a definition with the factory that instantiates its
// handler per analysis.
type Registration struct {
	Definition Definition
	New        Factory
}

var defValidator = validator.New()

// Catalog holds registered signatures. The shipped signature set
// registers into DefaultCatalog at init time; declarative definitions are
// loaded into a catalog by the Loader.
type Catalog struct {
	mu     sync.RWMutex
	byName map[string]int
	regs   []Registration
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]int)}
}

// DefaultCatalog receives the built-in signature set.
var DefaultCatalog = NewCatalog()

// Register validates the definition and adds it to the catalog. Duplicate
// names and invalid definitions are rejected.
func (c *Catalog) Register(def Definition, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register signature %q: nil factory", def.Name)
	}
	def = def.normalized()
	if err := defValidator.Struct(def); err != nil {
		return fmt.Errorf("register signature %q: %w", def.Name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byName[def.Name]; dup {
		return fmt.Errorf("register signature %q: already registered", def.Name)
	}
	c.byName[def.Name] = len(c.regs)
	c.regs = append(c.regs, Registration{Definition: def, New: factory})
	return nil
}

// MustRegister registers or panics. Intended for init-time registration
// of the built-in set.
func (c *Catalog) MustRegister(def Definition, factory Factory) {
	if err := c.Register(def, factory); err != nil {
		panic(err)
	}
}

// Register adds a signature to the default catalog, panicking on
// invalid definitions.
func Register(def Definition, factory Factory) {
	DefaultCatalog.MustRegister(def, factory)
}

// Definitions returns the registered definitions sorted by evaluation
// order, then name.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Definition, 0, len(c.regs))
	for _, reg := range c.regs {
		out = append(out, reg.Definition)
	}
	sortDefinitions(out)
	return out
}

// Len returns the number of registered signatures.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.regs)
}

// registrations returns the registrations in evaluation order.
func (c *Catalog) registrations() []Registration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Registration, len(c.regs))
	copy(out, c.regs)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Definition.Order != out[j].Definition.Order {
			return out[i].Definition.Order < out[j].Definition.Order
		}
		return out[i].Definition.Name < out[j].Definition.Name
	})
	return out
}

func sortDefinitions(defs []Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Order != defs[j].Order {
			return defs[i].Order < defs[j].Order
		}
		return defs[i].Name < defs[j].Name
	})
}
