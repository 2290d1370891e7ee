package memo

import (
	"strconv"
	"strings"
	"time"
)

// String adapts a Go string as a cacheable argument value.
type String string

func (s String) CacheString() string { return string(s) }

// Int adapts a signed integer as a cacheable argument value.
type Int int64

func (i Int) CacheString() string { return strconv.FormatInt(int64(i), 10) }

// Uint adapts an unsigned integer as a cacheable argument value.
type Uint uint64

func (u Uint) CacheString() string { return strconv.FormatUint(uint64(u), 10) }

// Float adapts a float64 as a cacheable argument value. The rendering uses
// the shortest representation that round-trips, so distinct floats never
// collide.
type Float float64

func (f Float) CacheString() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }

// Bool adapts a bool as a cacheable argument value.
type Bool bool

func (b Bool) CacheString() string { return strconv.FormatBool(bool(b)) }

// Duration adapts a time.Duration as a cacheable argument value.
type Duration time.Duration

func (d Duration) CacheString() string { return time.Duration(d).String() }

// Strings adapts a string slice as a cacheable argument value. Elements are
// escaped and comma-terminated so slices like ["a,b"] and ["a","b"], or []
// and [""], stay distinct.
type Strings []string

func (s Strings) CacheString() string {
	var b strings.Builder
	b.WriteByte('[')
	for _, elem := range s {
		b.WriteString(escapeList(elem))
		b.WriteByte(',')
	}
	b.WriteByte(']')
	return b.String()
}

func escapeList(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `,`, `\,`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
