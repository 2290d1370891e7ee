package memo

import (
	"fmt"
	"strings"
)

// boundParam is one included parameter of a specific call, in declaration
// order, with its value already resolved (explicit or default).
type boundParam struct {
	name  string
	value Value
}

// validate checks a Spec for registration-time misuse. All failures wrap
// ErrConfig: they are caller bugs, never recoverable at call time.
func (s *Spec) validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: function name is empty", ErrConfig)
	}
	if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
		return fmt.Errorf("%w: function name %q is not a valid path element", ErrConfig, s.Name)
	}

	declared := make(map[string]*Param, len(s.Params))
	for i := range s.Params {
		p := &s.Params[i]
		if p.Name == "" {
			return fmt.Errorf("%w: parameter name is empty", ErrConfig)
		}
		if _, dup := declared[p.Name]; dup {
			return fmt.Errorf("%w: duplicate parameter %q", ErrConfig, p.Name)
		}
		declared[p.Name] = p
	}

	seenOut := make(map[string]struct{}, len(s.OutputDirs))
	for _, name := range s.OutputDirs {
		if name == "" {
			return fmt.Errorf("%w: output directory name is empty", ErrConfig)
		}
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("%w: output directory name %q is not a valid path element", ErrConfig, name)
		}
		if _, dup := seenOut[name]; dup {
			return fmt.Errorf("%w: duplicate output directory %q", ErrConfig, name)
		}
		if _, clash := declared[name]; clash {
			return fmt.Errorf("%w: output directory %q collides with a declared parameter", ErrConfig, name)
		}
		seenOut[name] = struct{}{}
	}

	// Typos in the exclude lists are caught here, deterministically, rather
	// than producing wrong keys at call time.
	for _, name := range s.Exclude {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("%w: exclude name %q is not a parameter of %s", ErrConfig, name, s.Name)
		}
	}
	for _, name := range s.ExcludeIfDefault {
		p, ok := declared[name]
		if !ok {
			return fmt.Errorf("%w: exclude-if-default name %q is not a parameter of %s", ErrConfig, name, s.Name)
		}
		if p.Default == nil {
			return fmt.Errorf("%w: exclude-if-default parameter %q has no default", ErrConfig, name)
		}
	}
	return nil
}

// bind resolves a call's arguments against the declared parameter list,
// applying defaults, in declaration order.
func (s *Spec) bind(args Args) ([]boundParam, error) {
	declared := make(map[string]struct{}, len(s.Params))
	bound := make([]boundParam, 0, len(s.Params))
	for _, p := range s.Params {
		declared[p.Name] = struct{}{}
		v, ok := args[p.Name]
		if !ok {
			if p.Default == nil {
				return nil, fmt.Errorf("%w: %s of %s", ErrMissingArg, p.Name, s.Name)
			}
			v = p.Default
		}
		bound = append(bound, boundParam{name: p.Name, value: v})
	}
	for name := range args {
		if _, ok := declared[name]; !ok {
			return nil, fmt.Errorf("%w: %s is not a parameter of %s", ErrUnknownArg, name, s.Name)
		}
	}
	return bound, nil
}

// canonical renders the included parameters of a bound call as one
// deterministic string. Two calls that are equivalent for caching purposes
// produce identical canonical strings, provided every value's CacheString
// is injective.
func (f *filter) canonical(bound []boundParam) string {
	var b strings.Builder
	first := true
	for _, p := range bound {
		if f.excluded(p) {
			continue
		}
		if !first {
			b.WriteByte(';')
		}
		first = false
		b.WriteString(escapeField(p.name))
		b.WriteByte('=')
		b.WriteString(escapeField(p.value.CacheString()))
	}
	return b.String()
}

// filter holds a Spec's exclusion rules in lookup form.
type filter struct {
	exclude          map[string]struct{}
	excludeIfDefault map[string]Value
}

func newFilter(s *Spec) *filter {
	f := &filter{
		exclude:          make(map[string]struct{}, len(s.Exclude)),
		excludeIfDefault: make(map[string]Value, len(s.ExcludeIfDefault)),
	}
	for _, name := range s.Exclude {
		f.exclude[name] = struct{}{}
	}
	defaults := make(map[string]Value, len(s.Params))
	for _, p := range s.Params {
		defaults[p.Name] = p.Default
	}
	for _, name := range s.ExcludeIfDefault {
		f.excludeIfDefault[name] = defaults[name]
	}
	return f
}

func (f *filter) excluded(p boundParam) bool {
	if _, ok := f.exclude[p.name]; ok {
		return true
	}
	def, ok := f.excludeIfDefault[p.name]
	return ok && p.value.CacheString() == def.CacheString()
}

// escapeField makes names and values safe to join with ';' and '=' without
// ambiguity: a legitimate rendering can never forge a separator.
func escapeField(s string) string {
	if !strings.ContainsAny(s, `\;=`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', ';', '=':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
