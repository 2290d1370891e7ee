package memo

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meigma/memo/internal/compress"
	"github.com/meigma/memo/store"
)

// ImplFunc is the wrapped computation. It receives the bound arguments
// (defaults applied) and the injected output-directory paths, and must be
// deterministic in args: equal arguments must produce an equal return value
// and equal output-directory contents.
//
// Output-directory paths differ between a call that computes and a call
// that hits; the computation must treat them as opaque destinations and
// never persist them inside its results.
type ImplFunc[R any] func(ctx context.Context, args Args, out OutputDirs) (R, error)

// Result is the uniform shape returned by Call: the return value merged
// with the published output-directory paths.
type Result[R any] struct {
	// Value is the computation's return value, decoded from the entry on
	// a hit. The zero value for None results.
	Value R

	// OutputDirs maps each declared output-directory name to its
	// published path under the cache root.
	OutputDirs OutputDirs
}

// Func is a registered cached function. Create one per computation with
// NewFunc; a Func is safe for concurrent use.
type Func[R any] struct {
	cache   *Cache
	spec    Spec
	filter  *filter
	impl    ImplFunc[R]
	noValue bool
}

// NewFunc registers a computation with the cache. The Spec is validated
// here: unknown exclude names, duplicate parameters, and malformed output
// directory names fail with ErrConfig at registration time, not at the
// first call.
func NewFunc[R any](c *Cache, spec Spec, impl ImplFunc[R]) (*Func[R], error) {
	if c == nil {
		return nil, fmt.Errorf("%w: cache is nil", ErrConfig)
	}
	if impl == nil {
		return nil, fmt.Errorf("%w: implementation is nil", ErrConfig)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	var zero R
	_, noValue := any(zero).(None)
	return &Func[R]{
		cache:   c,
		spec:    spec,
		filter:  newFilter(&spec),
		impl:    impl,
		noValue: noValue,
	}, nil
}

// Name returns the function's declared name.
func (f *Func[R]) Name() string { return f.spec.Name }

// Key derives the entry key for a set of arguments without touching
// storage. Useful for debugging and cache-warming tooling.
func (f *Func[R]) Key(args Args) (string, error) {
	bound, err := f.spec.bind(args)
	if err != nil {
		return "", err
	}
	return f.cache.key(f.spec.Name, f.filter.canonical(bound)), nil
}

// Call returns the cached result for args, computing and publishing it
// first if absent. Calling twice with equivalent arguments invokes the
// computation once; the second call reads the published entry.
//
// Errors from the computation propagate unchanged and nothing is
// published, so a later call retries. A published entry that cannot be
// read back is logged, discarded, and recomputed. ErrConflict is returned
// when another process publishes the same key between this call's staging
// and commit.
func (f *Func[R]) Call(ctx context.Context, args Args) (Result[R], error) {
	bound, err := f.spec.bind(args)
	if err != nil {
		return Result[R]{}, err
	}
	key := f.cache.key(f.spec.Name, f.filter.canonical(bound))

	// Concurrent same-key calls within this process share one execution.
	// Cross-process races remain and are resolved at commit time.
	v, err, _ := f.cache.group.Do(f.spec.Name+"/"+key, func() (any, error) {
		return f.resolve(ctx, key, bound)
	})
	if err != nil {
		return Result[R]{}, err
	}
	res, _ := v.(Result[R]) //nolint:errcheck // type fixed by resolve
	return res, nil
}

// resolve drives one key through the hit/miss state machine.
func (f *Func[R]) resolve(ctx context.Context, key string, bound []boundParam) (Result[R], error) {
	st := f.cache.store
	log := f.cache.logger

	ent, status, err := st.Lookup(f.spec.Name, key)
	if err != nil {
		return Result[R]{}, err
	}
	switch status {
	case store.StatusValid:
		res, err := f.read(ent)
		if err == nil {
			return res, nil
		}
		// Token present but contents unreadable: recover by discarding
		// the entry and recomputing.
		log.Warn("discarding corrupt cache entry",
			slog.String("fn", f.spec.Name),
			slog.String("path", ent.Path()),
			slog.Any("error", err))
		if err := st.Remove(f.spec.Name, key); err != nil {
			return Result[R]{}, err
		}
	case store.StatusInvalid:
		// Leftover from a crashed writer. Not trusted, not a failure.
		log.Warn("removing incomplete cache entry",
			slog.String("fn", f.spec.Name),
			slog.String("key", key))
		if err := st.Remove(f.spec.Name, key); err != nil {
			return Result[R]{}, err
		}
	case store.StatusAbsent:
	}

	return f.compute(ctx, key, bound)
}

// read decodes a valid published entry into a Result.
func (f *Func[R]) read(ent store.Entry) (Result[R], error) {
	res := Result[R]{OutputDirs: f.outputDirs(ent)}
	if f.noValue {
		return res, nil
	}
	data, ok, err := ent.Result()
	if err != nil {
		return Result[R]{}, err
	}
	if !ok {
		return Result[R]{}, fmt.Errorf("%w: return value file is missing", store.ErrCorrupt)
	}
	if compress.IsCompressed(data) {
		if data, err = compress.Decode(data); err != nil {
			return Result[R]{}, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
		}
	}
	if err := f.cache.codec.Unmarshal(data, &res.Value); err != nil {
		return Result[R]{}, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return res, nil
}

// compute runs the computation under a staging entry and publishes it.
func (f *Func[R]) compute(ctx context.Context, key string, bound []boundParam) (Result[R], error) {
	st := f.cache.store

	stg, err := st.Stage(f.spec.Name, key)
	if err != nil {
		return Result[R]{}, err
	}

	out := make(OutputDirs, len(f.spec.OutputDirs))
	for _, name := range f.spec.OutputDirs {
		path, err := stg.MakeOutputDir(name)
		if err != nil {
			_ = stg.Discard()
			return Result[R]{}, err
		}
		out[name] = path
	}

	args := make(Args, len(bound))
	for _, p := range bound {
		args[p.name] = p.value
	}

	f.cache.logger.Info("cache miss, computing",
		slog.String("fn", f.spec.Name),
		slog.String("path", stg.Path()))

	value, err := f.impl(ctx, args, out)
	if err != nil {
		// Propagated verbatim; the staging never becomes visible.
		_ = stg.Discard()
		return Result[R]{}, err
	}

	if !f.noValue {
		data, err := f.cache.codec.Marshal(value)
		if err != nil {
			_ = stg.Discard()
			return Result[R]{}, fmt.Errorf("memo: encode return value of %s: %w", f.spec.Name, err)
		}
		if f.cache.compress {
			if data, err = compress.Encode(data); err != nil {
				_ = stg.Discard()
				return Result[R]{}, fmt.Errorf("memo: compress return value of %s: %w", f.spec.Name, err)
			}
		}
		if err := stg.WriteResult(data); err != nil {
			_ = stg.Discard()
			return Result[R]{}, err
		}
	}

	ent, err := stg.Commit()
	if err != nil {
		return Result[R]{}, err
	}
	return Result[R]{Value: value, OutputDirs: f.outputDirs(ent)}, nil
}

func (f *Func[R]) outputDirs(ent store.Entry) OutputDirs {
	if len(f.spec.OutputDirs) == 0 {
		return nil
	}
	out := make(OutputDirs, len(f.spec.OutputDirs))
	for _, name := range f.spec.OutputDirs {
		out[name] = ent.OutputDir(name)
	}
	return out
}
