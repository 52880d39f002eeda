package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Strob0t/tubedigest/internal/domain"
)

var (
	// ErrSecretNotFound is returned when no backend knows the secret.
	ErrSecretNotFound = fmt.Errorf("secret not found: %w", domain.ErrAuthFailure)
	// ErrSecretDenied is returned when a backend refuses access to the secret.
	ErrSecretDenied = fmt.Errorf("secret access denied: %w", domain.ErrAuthFailure)
)

// Resolver fetches the current value of a named secret from a backend
// (env vars, mounted files, a remote secret manager).
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, name string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// EnvResolver returns a Resolver that maps a secret name to an environment
// variable: prefix + upper-cased name with '-' and '.' replaced by '_'.
// Missing or empty variables yield ErrSecretNotFound.
func EnvResolver(prefix string) Resolver {
	return ResolverFunc(func(_ context.Context, name string) (string, error) {
		key := prefix + envName(name)
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("env %s: %w", key, ErrSecretNotFound)
	})
}

func envName(name string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name))
}

// FileResolver returns a Resolver that reads the secret from a file named
// after it inside dir (docker/k8s secret mounts). Surrounding whitespace is
// trimmed.
func FileResolver(dir string) Resolver {
	return ResolverFunc(func(_ context.Context, name string) (string, error) {
		if name == "" || filepath.Base(name) != name || name == "." || name == ".." {
			return "", fmt.Errorf("secret name %q: %w", name, ErrSecretDenied)
		}
		data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // G304: name is checked to be a plain file name
		switch {
		case errors.Is(err, os.ErrNotExist):
			return "", fmt.Errorf("file %s: %w", name, ErrSecretNotFound)
		case errors.Is(err, os.ErrPermission):
			return "", fmt.Errorf("file %s: %w", name, ErrSecretDenied)
		case err != nil:
			return "", fmt.Errorf("read secret file %s: %w", name, err)
		}
		v := strings.TrimSpace(string(data))
		if v == "" {
			return "", fmt.Errorf("file %s is empty: %w", name, ErrSecretNotFound)
		}
		return v, nil
	})
}

// ChainResolver tries each resolver in order and returns the first value
// found. Only ErrSecretNotFound falls through to the next backend.
func ChainResolver(rs ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, name string) (string, error) {
		for _, r := range rs {
			v, err := r.Resolve(ctx, name)
			if err == nil {
				return v, nil
			}
			if !errors.Is(err, ErrSecretNotFound) {
				return "", err
			}
		}
		return "", fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
	})
}
