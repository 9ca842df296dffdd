// Package collectors fetches raw profile data from external platforms.
package collectors

import (
	"context"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
)

const (
	PlatformGitHub   = "github"
	PlatformWebsite  = "website"
	PlatformDocument = "document"
)

// Credentials carries an optional per-source access token.
type Credentials struct {
	Token string
}

type Collector interface {
	Platform() string
	Fetch(ctx context.Context, identifier string, creds Credentials) (RawData, error)
}

// Registry resolves collectors by platform name.
type Registry struct {
	byPlatform map[string]Collector
}

func NewRegistry(cs ...Collector) *Registry {
	r := &Registry{byPlatform: make(map[string]Collector, len(cs))}
	for _, c := range cs {
		r.byPlatform[c.Platform()] = c
	}
	return r
}

func (r *Registry) Get(platform string) (Collector, error) {
	c, ok := r.byPlatform[platform]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported platform %q", common.ErrInvalidInput, platform)
	}
	return c, nil
}

func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.byPlatform))
	for p := range r.byPlatform {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
