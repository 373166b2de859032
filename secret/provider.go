package secret

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when a provider has no value for a reference.
var ErrNotFound = errors.New("secret: not found")

// Provider resolves secrets by reference string.
//
// Implementations must be safe for concurrent use and must not log secret values.
type Provider interface {
	Name() string
	Resolve(ctx context.Context, ref string) (string, error)
}

type fileProvider struct{}

// FileProvider returns the "file" provider.
func FileProvider() Provider { return fileProvider{} }

func (fileProvider) Name() string { return "file" }

func (fileProvider) Resolve(_ context.Context, ref string) (string, error) {
	raw, err := os.ReadFile(ref)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	s := strings.TrimSuffix(string(raw), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

type envProvider struct{}

// EnvProvider returns the "env" provider.
func EnvProvider() Provider { return envProvider{} }

func (envProvider) Name() string { return "env" }

func (envProvider) Resolve(_ context.Context, ref string) (string, error) {
	v, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("%w: env %s", ErrNotFound, ref)
	}
	return v, nil
}
