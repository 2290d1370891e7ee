package memo

import (
	"context"
	"testing"
)

func BenchmarkKeyDerivation(b *testing.B) {
	spec := Spec{
		Name: "train",
		Params: []Param{
			{Name: "adata_path"},
			{Name: "n_hidden", Default: Int(128)},
			{Name: "lr", Default: Float(1e-3)},
		},
		ExcludeIfDefault: []string{"lr"},
	}
	f := newFilter(&spec)
	args := Args{"adata_path": String("path/to/adata"), "n_hidden": Int(256)}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bound, err := spec.bind(args)
		if err != nil {
			b.Fatal(err)
		}
		_ = deriveKey(spec.Name, f.canonical(bound))
	}
}

func BenchmarkCallHit(b *testing.B) {
	c, err := New(b.TempDir())
	if err != nil {
		b.Fatal(err)
	}
	f, err := NewFunc(c, Spec{
		Name:   "sum",
		Params: []Param{{Name: "x"}, {Name: "y"}},
	}, func(ctx context.Context, args Args, out OutputDirs) (int64, error) {
		return int64(args["x"].(Int) + args["y"].(Int)), nil
	})
	if err != nil {
		b.Fatal(err)
	}

	ctx := context.Background()
	args := Args{"x": Int(1), "y": Int(2)}
	if _, err := f.Call(ctx, args); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.Call(ctx, args); err != nil {
			b.Fatal(err)
		}
	}
}
