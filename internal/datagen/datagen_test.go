package datagen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

func TestStringify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]any{}, "[]"},
		{[]any{"a", 1}, "[a, 1]"},
		{1.5, "1.5"},
		{float64(3), "3"},
		{true, "true"},
	}
	for _, tc := range tests {
		if got := Stringify(tc.in); got != tc.want {
			t.Errorf("Stringify(%#v): got %q want %q", tc.in, got, tc.want)
		}
	}
}

func TestConfigurationErrorIs(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := WrapConfiguration(cause, "bad spec")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if err.Error() != "bad spec: boom" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if WrapConfiguration(nil, "x") != nil {
		t.Fatal("wrapping nil must return nil")
	}
}

func TestFieldSpecConfigGetters(t *testing.T) {
	t.Parallel()

	spec := FieldSpec{
		"type": "hf-fill-mask",
		"config": map[string]any{
			"token-only": "TRUE",
			"seed":       float64(42),
			"cache-ttl":  "5m",
			"model-dir":  []any{},
		},
	}
	if spec.Type() != "hf-fill-mask" {
		t.Fatalf("unexpected type %q", spec.Type())
	}
	b, err := spec.ConfigBool("token-only", false)
	if err != nil || !b {
		t.Fatalf("ConfigBool: got %v, %v", b, err)
	}
	n, ok, err := spec.ConfigInt("seed")
	if err != nil || !ok || n != 42 {
		t.Fatalf("ConfigInt: got %d %v %v", n, ok, err)
	}
	d, err := spec.ConfigDuration("cache-ttl", 0)
	if err != nil || d.Minutes() != 5 {
		t.Fatalf("ConfigDuration: got %v %v", d, err)
	}
	if got := spec.ConfigString("model-dir", "default"); got != "[]" {
		t.Fatalf("ConfigString for empty list: got %q", got)
	}
	if got := spec.ConfigString("missing", "default"); got != "default" {
		t.Fatalf("ConfigString default: got %q", got)
	}

	bad := FieldSpec{"config": map[string]any{"token-only": 3}}
	if _, err := bad.ConfigBool("token-only", false); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAsFieldSpecShorthand(t *testing.T) {
	t.Parallel()

	spec, err := AsFieldSpec([]any{"a", "b"})
	if err != nil {
		t.Fatalf("AsFieldSpec: %v", err)
	}
	if spec.Type() != ValuesType {
		t.Fatalf("expected values type, got %q", spec.Type())
	}
	if _, err := AsFieldSpec(nil); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for nil, got %v", err)
	}
}

func TestValuesCycleByIteration(t *testing.T) {
	t.Parallel()

	loader := NewLoader(nil, nil, "")
	s, err := loader.GetFromSpec(context.Background(), []any{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetFromSpec: %v", err)
	}
	var got []string
	for i := 0; i < 4; i++ {
		v, err := s.Next(context.Background(), i)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, v.(string))
	}
	if strings.Join(got, "") != "abca" {
		t.Fatalf("unexpected cycle: %v", got)
	}
}

func TestValuesSampleIsSeeded(t *testing.T) {
	t.Parallel()

	spec := FieldSpec{"data": []any{"a", "b", "c", "d"}, "config": map[string]any{"sample": true, "seed": 7}}
	draw := func() string {
		s, err := NewLoader(nil, nil, "").GetFromSpec(context.Background(), spec)
		if err != nil {
			t.Fatalf("GetFromSpec: %v", err)
		}
		var b strings.Builder
		for i := 0; i < 10; i++ {
			v, _ := s.Next(context.Background(), 0)
			b.WriteString(v.(string))
		}
		return b.String()
	}
	if a, b := draw(), draw(); a != b {
		t.Fatalf("same seed produced different draws: %q vs %q", a, b)
	}
}

func TestLoaderRefsAndUnknowns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	loader := NewLoader(nil, map[string]any{"GREETINGS": []any{"hi"}}, "")

	s, err := loader.GetFromSpec(ctx, FieldSpec{"type": "ref", "ref": "GREETINGS"})
	if err != nil {
		t.Fatalf("ref: %v", err)
	}
	if v, _ := s.Next(ctx, 0); v != "hi" {
		t.Fatalf("unexpected ref value %v", v)
	}

	if _, err := loader.Ref("MISSING"); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown ref, got %v", err)
	}
	if _, err := loader.GetFromSpec(ctx, FieldSpec{"type": "nope"}); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown type, got %v", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	fn := func(context.Context, FieldSpec, *Loader) (Supplier, error) { return nil, nil }
	if err := reg.RegisterType("custom", fn); err != nil {
		t.Fatalf("RegisterType: %v", err)
	}
	if err := reg.RegisterType("custom", fn); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if err := reg.RegisterSchema("custom", map[string]any{"type": "object"}); err != nil {
		t.Fatalf("RegisterSchema: %v", err)
	}
	if _, ok := reg.Schema("custom"); !ok {
		t.Fatal("expected schema to be registered")
	}
	want := []string{"custom", RefType, ValuesType}
	if got := reg.Types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected types: got %v want %v", got, want)
	}
}

func TestParseDocumentKeepsOrder(t *testing.T) {
	t.Parallel()

	inputs := map[Format]string{
		FormatJSON: `{"zeta": ["z"], "alpha": {"type": "ref", "ref": "R"}, "refs": {"R": ["r"]}}`,
		FormatYAML: "zeta: [z]\nalpha:\n  type: ref\n  ref: R\nrefs:\n  R: [r]\n",
		FormatTOML: "zeta = [\"z\"]\n\n[alpha]\ntype = \"ref\"\nref = \"R\"\n\n[refs]\nR = [\"r\"]\n",
	}
	for format, input := range inputs {
		doc, err := ParseDocument([]byte(input), format)
		if err != nil {
			t.Fatalf("%s: ParseDocument: %v", format, err)
		}
		if len(doc.Fields) != 2 || doc.Fields[0].Name != "zeta" || doc.Fields[1].Name != "alpha" {
			t.Fatalf("%s: unexpected field order: %s", format, doc)
		}
		if _, ok := doc.Refs["R"]; !ok {
			t.Fatalf("%s: expected ref R", format)
		}
	}
}

func TestParseDocumentErrors(t *testing.T) {
	t.Parallel()

	if _, err := ParseDocument([]byte(`{`), FormatJSON); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for bad json, got %v", err)
	}
	if _, err := ParseDocument([]byte(`{"refs": {}}`), FormatJSON); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for no fields, got %v", err)
	}
	if FormatFromPath("spec.YML") != FormatYAML || FormatFromPath("spec.toml") != FormatTOML || FormatFromPath("spec") != FormatJSON {
		t.Fatal("unexpected format detection")
	}
}

func TestGeneratorRecordsMarshalInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	doc, err := ParseDocument([]byte(`{"b": ["x", "y"], "a": 1}`), FormatJSON)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	gen, err := NewGenerator(ctx, doc, NewLoader(nil, doc.Refs, ""))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	var records []Record
	if err := gen.Generate(ctx, 2, func(r Record) error {
		records = append(records, r)
		return nil
	}); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	out, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	if string(out) != `[{"b":"x","a":1},{"b":"y","a":1}]` {
		t.Fatalf("unexpected json: %s", out)
	}

	y, err := yaml.Marshal(records[0])
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	if string(y) != "b: x\na: 1\n" {
		t.Fatalf("unexpected yaml: %q", y)
	}
}

func TestGeneratorStopsAtFirstError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg := NewRegistry()
	failAt := 1
	_ = reg.RegisterType("flaky", func(context.Context, FieldSpec, *Loader) (Supplier, error) {
		return SupplierFunc(func(_ context.Context, i int) (any, error) {
			if i == failAt {
				return nil, Configurationf("bad iteration")
			}
			return i, nil
		}), nil
	})
	doc := &Document{Fields: []Field{{Name: "f", Spec: FieldSpec{"type": "flaky"}}}}
	gen, err := NewGenerator(ctx, doc, NewLoader(reg, nil, ""))
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	calls := 0
	err = gen.Generate(ctx, 5, func(Record) error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected generation to stop after 1 record, got %d", calls)
	}
	if !strings.Contains(err.Error(), "iteration 1") {
		t.Fatalf("error should name the failing iteration: %v", err)
	}
}
