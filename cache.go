package memo

import (
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/memo/codec"
	"github.com/meigma/memo/store"
	"github.com/meigma/memo/store/disk"
)

// Cache holds the process configuration for a set of cached functions: the
// storage backend, the return-value codec, and the logger. Construct one
// before registering functions; an unset root fails immediately rather than
// at the first call.
type Cache struct {
	store        store.Store
	codec        codec.Codec
	logger       *slog.Logger
	compress     bool
	readableKeys bool
	group        singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Misses and recovered corrupt entries are
// logged; hits are silent. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithCodec sets the return-value codec. Defaults to codec.CBOR.
func WithCodec(cd codec.Codec) Option {
	return func(c *Cache) {
		c.codec = cd
	}
}

// WithStore sets the storage backend, replacing the default disk store.
// When set, the dir argument to New is ignored and may be empty.
func WithStore(st store.Store) Option {
	return func(c *Cache) {
		c.store = st
	}
}

// WithCompression enables zstd compression of stored return values.
// Compressed and uncompressed entries can coexist; reads detect the
// frame header.
func WithCompression(enabled bool) Option {
	return func(c *Cache) {
		c.compress = enabled
	}
}

// WithHumanReadableKeys names entry directories by their escaped canonical
// signature instead of its digest, for caches that are browsed by hand.
// Signatures too long for a directory name still use the digest form.
//
// Choose one naming mode per cache root: entries written in one mode are
// not found in the other.
func WithHumanReadableKeys() Option {
	return func(c *Cache) {
		c.readableKeys = true
	}
}

// New creates a Cache backed by a disk store rooted at dir.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{
		codec:  codec.CBOR{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	if c.store == nil {
		if dir == "" {
			return nil, fmt.Errorf("%w: cache root is unset", ErrConfig)
		}
		st, err := disk.New(dir)
		if err != nil {
			return nil, err
		}
		c.store = st
	}
	return c, nil
}

// key derives the entry directory name for a canonical signature under this
// cache's naming mode.
func (c *Cache) key(fn, canonical string) string {
	if c.readableKeys {
		return deriveReadableKey(fn, canonical)
	}
	return deriveKey(fn, canonical)
}
