// Package memo provides transparent, disk-backed memoization for
// deterministic computations.
//
// A computation is registered once with a declared parameter list and an
// optional set of named output directories. Calls are keyed by a canonical
// rendering of their arguments: repeated calls with equivalent arguments
// return the previously published entry instead of recomputing. Entries are
// staged privately and published with a single directory rename, so a reader
// never observes a partially written entry, even across crashes.
//
// # Quick Start
//
//	cache, err := memo.New("/var/cache/pipeline")
//	if err != nil {
//	    return err
//	}
//	train, err := memo.NewFunc(cache, memo.Spec{
//	    Name: "train",
//	    Params: []memo.Param{
//	        {Name: "adata_path"},
//	        {Name: "n_hidden", Default: memo.Int(128)},
//	    },
//	    OutputDirs: []string{"output_model_dir"},
//	}, func(ctx context.Context, args memo.Args, out memo.OutputDirs) (memo.None, error) {
//	    return memo.None{}, trainModel(args["adata_path"].CacheString(), out["output_model_dir"])
//	})
//
//	res, err := train.Call(ctx, memo.Args{"adata_path": memo.String("data/adata.h5ad")})
//	modelDir := res.OutputDirs["output_model_dir"]
//
// The wrapped computation must be deterministic and side-effect free; the
// package trusts that contract rather than verifying it.
package memo

import (
	"errors"

	"github.com/meigma/memo/store"
)

// Sentinel errors.
var (
	// ErrConfig is returned for static misuse: an empty cache root, an
	// exclude name that is not a declared parameter, duplicate parameter
	// names, and similar registration-time mistakes.
	ErrConfig = errors.New("memo: invalid configuration")

	// ErrUnknownArg is returned when a call binds an argument name that is
	// not a declared parameter.
	ErrUnknownArg = errors.New("memo: unknown argument")

	// ErrMissingArg is returned when a call omits a parameter that has no
	// declared default.
	ErrMissingArg = errors.New("memo: missing required argument")
)

// Sentinel errors re-exported from store.
var (
	// ErrConflict is returned to the loser of a same-key race: another
	// writer published the entry between this call's staging and commit.
	// The call fails rather than silently adopting the other result.
	ErrConflict = store.ErrConflict

	// ErrCorruptEntry marks a published entry whose contents could not be
	// read back. It is recovered internally (the entry is discarded and
	// recomputed) and surfaces only in logs.
	ErrCorruptEntry = store.ErrCorrupt
)

// Value is the capability required of every cacheable argument value: a
// deterministic string rendering used to derive the cache key.
//
// CacheString must be injective within a parameter: distinct values must
// never produce the same string. The package cannot detect violations;
// a non-injective rendering silently causes wrong cache hits.
type Value interface {
	CacheString() string
}

// Args is the bound argument mapping for one call, by parameter name.
type Args map[string]Value

// OutputDirs maps declared output-directory parameter names to the
// filesystem paths injected for them.
type OutputDirs map[string]string

// Param declares one parameter of a cached function.
type Param struct {
	// Name is the parameter name.
	Name string

	// Default is the value bound when a call omits the parameter.
	// A nil Default makes the parameter required.
	Default Value
}

// Spec declares a cached function: its identity, parameters, and key
// derivation rules.
type Spec struct {
	// Name namespaces the function's entries on disk and in the hashed
	// key space. Two functions never share storage, even with identical
	// argument shapes.
	Name string

	// Params is the ordered declared-parameter list.
	Params []Param

	// OutputDirs names parameters whose role is an output directory.
	// The orchestrator injects an entry-relative path for each; they are
	// destinations, not inputs, and never participate in the cache key.
	OutputDirs []string

	// Exclude lists parameter names always omitted from the cache key
	// (e.g. worker counts that do not affect the result).
	Exclude []string

	// ExcludeIfDefault lists parameter names omitted from the cache key
	// when their bound value equals the declared default. Marking new
	// parameters this way keeps previously published entries reachable.
	ExcludeIfDefault []string
}

// None is the result type for computations whose only outputs are their
// output directories. No return value file is written for None results.
type None struct{}
