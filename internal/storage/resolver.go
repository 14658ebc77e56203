package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"tfl-lake/internal/domain"
)

// OpenFunc creates the store serving loc with the given credential, which may
// be nil when no credential applies.
type OpenFunc func(ctx context.Context, loc Location, cred *domain.StorageCredential) (ObjectStore, error)

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	// LocalRoot, when set, maps every cloud URL beneath this directory and
	// disables credential lookups.
	LocalRoot string
	// DefaultCredential names the credential used when no external location
	// covers a URL.
	DefaultCredential string
	Locations         domain.ExternalLocationRepository
	Credentials       domain.StorageCredentialRepository
	// Open overrides how cloud stores are created.
	Open OpenFunc
}

// Resolver hands out object stores for storage URLs and maps URLs to the
// paths DuckDB reads. Stores are cached per container or bucket.
type Resolver struct {
	opts   ResolverOptions
	local  *LocalStore
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]ObjectStore
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOptions, logger *slog.Logger) *Resolver {
	if opts.Open == nil {
		opts.Open = OpenStore
	}
	return &Resolver{
		opts:   opts,
		local:  NewLocalStore(opts.LocalRoot),
		logger: logger.With("component", "storage"),
		stores: make(map[string]ObjectStore),
	}
}

// Local reports whether cloud URLs are emulated on the local filesystem.
func (r *Resolver) Local() bool { return r.opts.LocalRoot != "" }

// Store returns the object store serving rawURL.
func (r *Resolver) Store(ctx context.Context, rawURL string) (ObjectStore, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	if r.Local() || loc.Scheme == SchemeFile {
		return r.local, nil
	}

	key := loc.ContainerKey()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	cred, err := r.credentialFor(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	s, err := r.opts.Open(ctx, loc, cred)
	if err != nil {
		return nil, fmt.Errorf("open store for %s: %w", rawURL, err)
	}
	credName := ""
	if cred != nil {
		credName = cred.Name
	}
	r.logger.Debug("object store opened", "container", key, "credential", credName)
	r.stores[key] = s
	return s, nil
}

// EnginePath returns the path DuckDB should use for rawURL: the mapped local
// path in local mode, the URL itself otherwise.
func (r *Resolver) EnginePath(rawURL string) (string, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return "", err
	}
	if loc.Scheme == SchemeFile {
		return loc.Key, nil
	}
	if r.Local() {
		return LocalPath(r.opts.LocalRoot, loc), nil
	}
	return rawURL, nil
}

// CredentialFor returns the credential governing rawURL: the credential of the
// longest external location that prefixes it, else the default credential.
// It returns nil when neither applies.
func (r *Resolver) CredentialFor(ctx context.Context, rawURL string) (*domain.StorageCredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.credentialFor(ctx, rawURL)
}

func (r *Resolver) credentialFor(ctx context.Context, rawURL string) (*domain.StorageCredential, error) {
	name := r.opts.DefaultCredential
	if r.opts.Locations != nil {
		locs, _, err := r.opts.Locations.List(ctx, domain.PageRequest{MaxResults: domain.MaxMaxResults})
		if err != nil {
			return nil, fmt.Errorf("list external locations: %w", err)
		}
		best := -1
		for _, l := range locs {
			if covers(l.URL, rawURL) && len(l.URL) > best {
				best = len(l.URL)
				name = l.CredentialName
			}
		}
	}
	if name == "" || r.opts.Credentials == nil {
		return nil, nil
	}
	cred, err := r.opts.Credentials.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("storage credential for %s: %w", rawURL, err)
	}
	return cred, nil
}

// covers reports whether target lies at or beneath prefix, on a path boundary.
func covers(prefix, target string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	return target == prefix || strings.HasPrefix(target, prefix+"/")
}

// OpenStore creates the cloud store for a location.
func OpenStore(ctx context.Context, loc Location, cred *domain.StorageCredential) (ObjectStore, error) {
	switch loc.Scheme {
	case SchemeABFSS:
		return NewAzureStore(loc.Account(), cred)
	case SchemeAz:
		if cred == nil || cred.AzureAccountName == "" {
			return nil, fmt.Errorf("az:// locations need an Azure credential naming the account")
		}
		return NewAzureStore(cred.AzureAccountName, cred)
	case SchemeS3:
		return NewS3Store(cred)
	case SchemeGS:
		return NewGCSStore(ctx, cred)
	case SchemeFile:
		return NewLocalStore(""), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", loc.Scheme)
	}
}
