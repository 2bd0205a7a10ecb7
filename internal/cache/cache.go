// Package cache implements the content-addressed local and remote cache
// layers (spec §4.G): local filesystem storage, an optional HTTP remote,
// single-flight collapsing of concurrent fetches, and, when Opts.Signer is
// enabled, signature verification before any file is written to the
// working tree. Without an enabled Signer, archives are restored without
// any integrity check.
package cache

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/turbine-build/turbine/internal/turbopath"
)

// Source identifies where a cache hit was served from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	// SourceDaemon marks a hit the daemon confirmed without a restore: its
	// on-disk outputs for hash were already intact, so Fetch was never
	// called (spec §4.H.2, §4.I).
	SourceDaemon Source = "daemon"
)

// Status is the result of Fetch (spec §4.G "fetch(hash) -> {Hit, Miss}").
type Status struct {
	Hit      bool
	Source   Source
	Duration int
	Outputs  []turbopath.AnchoredSystemPath
}

// Existence is the result of Exists (spec §4.G "exists(hash) ->
// {local?, remote?}").
type Existence struct {
	Local  bool
	Remote bool
}

// Cache composes the local layer with an optional remote layer.
type Cache struct {
	repoRoot   turbopath.AbsoluteSystemPath
	local      *localLayer
	remote     *remoteClient
	remoteOnly bool
	signer     *SignatureAuthenticator

	group      singleflight.Group
	uploadSema chan struct{}
}

const defaultCacheWorkers = 10

// Opts configures a Cache (spec §6 CLI surface: --cache-dir,
// --remote-only, --no-cache are applied by callers before constructing or
// by skipping Cache entirely).
type Opts struct {
	RepoRoot   turbopath.AbsoluteSystemPath
	CacheDir   turbopath.AbsoluteSystemPath
	Remote     *RemoteConfig
	RemoteOnly bool
	Signer     *SignatureAuthenticator
	// CacheWorkers bounds how many background remote uploads (from Put)
	// may run at once, matching turbo.json's "cacheWorkers" field.
	CacheWorkers int
}

// New builds a Cache. Remote may be nil to run local-only.
func New(opts Opts) *Cache {
	workers := opts.CacheWorkers
	if workers <= 0 {
		workers = defaultCacheWorkers
	}
	c := &Cache{
		repoRoot:   opts.RepoRoot,
		local:      newLocalLayer(opts.CacheDir),
		remoteOnly: opts.RemoteOnly,
		signer:     opts.Signer,
		uploadSema: make(chan struct{}, workers),
	}
	if opts.Remote != nil {
		c.remote = newRemoteClient(*opts.Remote)
	}
	return c
}

// Fetch implements spec §4.G's layering contract: local first, then
// remote (streamed into the local layer on hit), with single-flight
// collapsing of concurrent callers for the same hash.
func (c *Cache) Fetch(ctx context.Context, hash string) (Status, error) {
	v, err, _ := c.group.Do(hash, func() (interface{}, error) {
		return c.fetch(ctx, hash)
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

func (c *Cache) fetch(ctx context.Context, hash string) (Status, error) {
	if !c.remoteOnly {
		files, hit, err := c.local.fetch(c.repoRoot, hash)
		if err != nil {
			return Status{}, err
		}
		if hit {
			return Status{Hit: true, Source: SourceLocal, Outputs: files}, nil
		}
	}

	if c.remote == nil {
		return Status{}, nil
	}

	result, err := c.remote.Fetch(ctx, hash)
	if err != nil {
		return Status{}, err
	}
	if result == nil {
		return Status{}, nil
	}

	if c.signer != nil && c.signer.Enabled {
		if result.SignatureTag == "" {
			return Status{}, fmt.Errorf("artifact verification failed: missing signature for %s", hash)
		}
		ok, err := c.signer.Validate(hash, result.Body, result.SignatureTag)
		if err != nil {
			return Status{}, err
		}
		if !ok {
			return Status{}, fmt.Errorf("artifact verification failed: signature mismatch for %s", hash)
		}
	}

	files, err := c.local.adopt(c.repoRoot, hash, result.Duration, result.Body)
	if err != nil {
		return Status{}, err
	}
	return Status{Hit: true, Source: SourceRemote, Duration: result.Duration, Outputs: files}, nil
}

// Put implements spec §4.G's "put always writes local; writes remote
// asynchronously when configured."
func (c *Cache) Put(ctx context.Context, hash string, taskID string, duration int, files []turbopath.AnchoredSystemPath) error {
	if err := c.local.put(c.repoRoot, hash, duration, taskID, files); err != nil {
		return err
	}
	if c.remote == nil {
		return nil
	}

	go func() {
		c.uploadSema <- struct{}{}
		defer func() { <-c.uploadSema }()

		body, err := c.local.readBytes(hash)
		if err != nil {
			return
		}
		tag := ""
		if c.signer != nil && c.signer.Enabled {
			tag, err = c.signer.GenerateTag(hash, body)
			if err != nil {
				return
			}
		}
		_ = c.remote.Put(context.Background(), hash, body, duration, tag)
	}()
	return nil
}

// Exists implements spec §4.G "exists".
func (c *Cache) Exists(ctx context.Context, hash string) Existence {
	ex := Existence{Local: c.local.exists(hash)}
	if c.remote != nil {
		ex.Remote, _ = c.remote.Exists(ctx, hash)
	}
	return ex
}

// Clean removes every local entry. Remote entries are immutable and
// cannot be cleaned by this client (spec §4.G entries are immutable).
func (c *Cache) Clean() error {
	return c.local.clean()
}
