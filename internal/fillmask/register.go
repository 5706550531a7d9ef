package fillmask

import (
	"context"

	"github.com/samcharles93/maskfill/internal/datagen"
)

// Config keys read from a field spec's "config" block.
const (
	keyPlaceholder = "mask-token-placeholder"
	keyPipeline    = "pipeline"
	keyModelDir    = "model-dir"
	keyTokenOnly   = "token-only"
	keySeed        = "seed"
	keySeedRef     = "seed-ref"
)

// Configure returns the field type constructor. pipelines loads the pipeline named
// by each field.
func Configure(pipelines PipelineLoader) datagen.TypeFunc {
	return func(ctx context.Context, spec datagen.FieldSpec, loader *datagen.Loader) (datagen.Supplier, error) {
		if !spec.Has(keySeedRef) {
			return nil, datagen.Configurationf("seed-ref is required field for %s type: %s", TypeName, spec.JSON())
		}
		key, ok := spec.String(keySeedRef)
		if !ok || key == "" {
			return nil, datagen.Configurationf("seed-ref must be a non-empty string for %s type: %s", TypeName, spec.JSON())
		}
		seedSpec, err := loader.Ref(key)
		if err != nil {
			return nil, err
		}

		opts := Options{
			Placeholder:  spec.ConfigString(keyPlaceholder, DefaultPlaceholder),
			PipelineName: spec.ConfigString(keyPipeline, DefaultPipeline),
			ModelDir:     loader.Datadir,
		}
		if v, present := spec.ConfigValue(keyModelDir); present {
			opts.ModelDir = modelDir(v)
		}
		if opts.TokenOnly, err = spec.ConfigBool(keyTokenOnly, false); err != nil {
			return nil, err
		}
		seed, hasSeed, err := spec.ConfigInt(keySeed)
		if err != nil {
			return nil, err
		}
		if hasSeed {
			opts.Seed = &seed
		}

		wrapped, err := loader.GetFromSpec(ctx, seedSpec)
		if err != nil {
			return nil, err
		}
		return New(ctx, wrapped, pipelines, opts)
	}
}

// modelDir renders a model-dir config value. Falsy values (null, false, zero,
// empty lists and maps) mean "no directory" and become "".
func modelDir(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if !t {
			return ""
		}
	case int:
		if t == 0 {
			return ""
		}
	case int64:
		if t == 0 {
			return ""
		}
	case uint64:
		if t == 0 {
			return ""
		}
	case float64:
		if t == 0 {
			return ""
		}
	case []any:
		if len(t) == 0 {
			return ""
		}
	case map[string]any:
		if len(t) == 0 {
			return ""
		}
	}
	return datagen.Stringify(v)
}

// Schema is the JSON schema advertised for the field type.
func Schema() map[string]any {
	return map[string]any{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"$id":      TypeName + ".schema.json",
		"type":     "object",
		"required": []any{"type", keySeedRef},
		"properties": map[string]any{
			"type":     map[string]any{"type": "string", "pattern": "^" + TypeName},
			keySeedRef: map[string]any{"type": "string"},
		},
	}
}

// Register adds the field type and its schema to reg.
func Register(reg *datagen.Registry, pipelines PipelineLoader) error {
	if err := reg.RegisterType(TypeName, Configure(pipelines)); err != nil {
		return err
	}
	return reg.RegisterSchema(TypeName, Schema())
}
