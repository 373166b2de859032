package secret

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const refPrefix = "secretref:"

// Resolver resolves secret references using registered providers.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. In strict mode an empty resolved value is
// an error.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[string]Provider, len(providers)),
		strict:    strict,
	}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Default returns a strict resolver with the file and env providers.
func Default() *Resolver {
	return NewResolver(true, FileProvider(), EnvProvider())
}

// ResolveValue replaces every secret reference in value. Values without a
// reference are returned unchanged.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	if !strings.Contains(value, refPrefix) {
		return value, nil
	}
	if provider, ref, ok := ParseSecretRef(value); ok {
		return r.resolveSingle(ctx, provider, ref)
	}
	return r.resolveInline(ctx, value)
}

// ResolveAll resolves each pointed-to string in place. The first failure
// stops resolution and names the field.
func (r *Resolver) ResolveAll(ctx context.Context, fields map[string]*string) error {
	for name, p := range fields {
		if p == nil {
			continue
		}
		v, err := r.ResolveValue(ctx, *p)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*p = v
	}
	return nil
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	if !strings.HasPrefix(value, refPrefix) {
		return "", "", false
	}
	provider, ref, found := strings.Cut(strings.TrimPrefix(value, refPrefix), ":")
	if !found || provider == "" || ref == "" || strings.ContainsAny(ref, " \t\n") {
		return "", "", false
	}
	return provider, ref, true
}

func (r *Resolver) resolveSingle(ctx context.Context, providerName string, ref string) (string, error) {
	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("secret: provider %q is not registered", providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if r.strict && resolved == "" {
		return "", fmt.Errorf("secret: provider %q returned empty value", providerName)
	}
	return resolved, nil
}

// Inline references end at whitespace or '@', so a reference can sit in the
// password slot of a URL.
var inlineRefPattern = regexp.MustCompile(`secretref:([^:\s@]+):([^\s@]+)`)

func (r *Resolver) resolveInline(ctx context.Context, value string) (string, error) {
	matches := inlineRefPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	out := value
	for i := len(matches) - 1; i >= 0; i-- {
		m := matches[i]
		// Replacing from the end keeps earlier indexes valid.
		resolved, err := r.resolveSingle(ctx, out[m[2]:m[3]], out[m[4]:m[5]])
		if err != nil {
			return "", err
		}
		out = out[:m[0]] + resolved + out[m[1]:]
	}
	return out, nil
}
