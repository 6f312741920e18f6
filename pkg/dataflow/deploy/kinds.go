package deploy

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/dataflow/pkg/dataflow"
	"github.com/randalmurphal/dataflow/pkg/dataflow/config"
	"github.com/randalmurphal/dataflow/pkg/dataflow/registry"
)

// ErrUnknownKind indicates a node names an operator kind nobody registered.
var ErrUnknownKind = errors.New("unknown operator kind")

// Factory builds the operator for one node from its parameters.
type Factory func(id string, cfg config.Config) (dataflow.Operator, error)

// Kinds maps operator kind names to factories.
// Kinds is safe for concurrent use.
type Kinds struct {
	factories *registry.Registry[string, Factory]
}

// NewKinds creates an empty kind registry.
func NewKinds() *Kinds {
	return &Kinds{factories: registry.New[string, Factory]()}
}

// Register adds a factory for kind. Registering the same kind twice is
// an error.
func (k *Kinds) Register(kind string, f Factory) error {
	if kind == "" {
		return errors.New("deploy: kind cannot be empty")
	}
	if f == nil {
		return fmt.Errorf("deploy: factory for %q cannot be nil", kind)
	}
	return k.factories.Add(kind, f)
}

// MustRegister is like Register but panics on error.
func (k *Kinds) MustRegister(kind string, f Factory) {
	if err := k.Register(kind, f); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for kind.
func (k *Kinds) Lookup(kind string) (Factory, bool) {
	return k.factories.Get(kind)
}

// Names returns the registered kinds in sorted order.
func (k *Kinds) Names() []string {
	return k.factories.Keys()
}

// New builds an operator of the given kind.
func (k *Kinds) New(kind, id string, cfg config.Config) (dataflow.Operator, error) {
	f, ok := k.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	op, err := f(id, cfg)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, fmt.Errorf("factory for %q returned a nil operator", kind)
	}
	return op, nil
}
