package datagen

import (
	"context"

	"github.com/samcharles93/maskfill/internal/logger"
)

// Loader resolves field specs into suppliers. Types resolve references and nested
// specs through it.
type Loader struct {
	Refs     map[string]any
	Datadir  string
	Registry *Registry
	Logger   logger.Logger
}

// NewLoader returns a loader over reg. A nil reg gets the built-in types only.
func NewLoader(reg *Registry, refs map[string]any, datadir string) *Loader {
	if reg == nil {
		reg = NewRegistry()
	}
	if refs == nil {
		refs = map[string]any{}
	}
	return &Loader{Refs: refs, Datadir: datadir, Registry: reg}
}

// Ref returns the raw spec registered under name.
func (l *Loader) Ref(name string) (any, error) {
	raw, ok := l.Refs[name]
	if !ok {
		return nil, Configurationf("unknown ref %q", name)
	}
	return raw, nil
}

// GetFromSpec builds the supplier for raw, which may be any valid field spec.
func (l *Loader) GetFromSpec(ctx context.Context, raw any) (Supplier, error) {
	spec, err := AsFieldSpec(raw)
	if err != nil {
		return nil, err
	}
	typ := spec.Type()
	fn, ok := l.Registry.Lookup(typ)
	if !ok {
		return nil, Configurationf("unknown field type %q: %s", typ, spec.JSON())
	}
	l.log(ctx).Debug("building supplier", "type", typ)
	return fn(ctx, spec, l)
}

func (l *Loader) log(ctx context.Context) logger.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return logger.FromContext(ctx)
}
