package datagen

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// RefType resolves {"type": "ref", "ref": "NAME"} through the loader's refs.
const RefType = "ref"

type valuesSupplier struct {
	data   []any
	sample bool

	mu  sync.Mutex
	rng *rand.Rand
}

func (s *valuesSupplier) Next(_ context.Context, iteration int) (any, error) {
	if len(s.data) == 1 {
		return s.data[0], nil
	}
	if s.sample {
		s.mu.Lock()
		idx := s.rng.Intn(len(s.data))
		s.mu.Unlock()
		return s.data[idx], nil
	}
	if iteration < 0 {
		iteration = -iteration
	}
	return s.data[iteration%len(s.data)], nil
}

func configureValues(_ context.Context, spec FieldSpec, _ *Loader) (Supplier, error) {
	raw, ok := spec["data"]
	if !ok {
		return nil, Configurationf("values type requires data: %s", spec.JSON())
	}
	var data []any
	switch v := raw.(type) {
	case []any:
		data = v
	case []string:
		data = make([]any, len(v))
		for i, s := range v {
			data[i] = s
		}
	default:
		data = []any{v}
	}
	if len(data) == 0 {
		return nil, Configurationf("values type requires non-empty data: %s", spec.JSON())
	}

	sample, err := spec.ConfigBool("sample", false)
	if err != nil {
		return nil, err
	}
	seed, hasSeed, err := spec.ConfigInt("seed")
	if err != nil {
		return nil, err
	}
	if !hasSeed {
		seed = time.Now().UnixNano()
	}
	return &valuesSupplier{
		data:   data,
		sample: sample,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func configureRef(ctx context.Context, spec FieldSpec, loader *Loader) (Supplier, error) {
	name, ok := spec.String("ref")
	if !ok || name == "" {
		return nil, Configurationf("ref type requires ref: %s", spec.JSON())
	}
	raw, err := loader.Ref(name)
	if err != nil {
		return nil, err
	}
	return loader.GetFromSpec(ctx, raw)
}
