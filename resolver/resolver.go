// Package resolver defines the seam to the external dependency resolver.
//
// This module never resolves or installs packages itself; it consumes a
// finished root filesystem. The Resolver interface is the narrow contract a
// backend (typically a foreign package-manager library) must present, and
// Session scopes the backend's lifetime so its resources are released on
// every exit path.
package resolver

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bibin-skaria/ocidir/config"
)

// Package is one concrete package chosen by the resolver
type Package struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Arch     string `json:"arch,omitempty"`
	RepoID   string `json:"repoid,omitempty"`
	Checksum string `json:"checksum,omitempty"`
}

// Resolution is the resolver's answer for a set of package specs
type Resolution struct {
	// Packages resolved from remote repositories
	Packages []Package `json:"packages"`
	// LocalPackages supplied as files rather than repo references
	LocalPackages []Package `json:"local_packages,omitempty"`
	// RepoGPGConfig maps repository IDs to the GPG key URLs used to
	// verify their content
	RepoGPGConfig map[string][]string `json:"repo_gpg_config,omitempty"`
}

// Resolver is the contract an external resolution backend presents. The
// backend owns all solver logic; callers remain agnostic to how resolution
// happens.
type Resolver interface {
	// Resolve turns package specs plus repository definitions into a
	// concrete package list.
	Resolve(ctx context.Context, specs []string, repos []config.Repository, gpgKeys []string) (*Resolution, error)
	// InstallRoot materializes a resolution as a root filesystem at dest.
	InstallRoot(ctx context.Context, res *Resolution, dest string) error
}

// ErrSessionClosed is returned when a session is used after Close
var ErrSessionClosed = fmt.Errorf("resolver session is closed")

// Session scopes a resolver backend's lifetime. Backends may hold plugins,
// caches, or subprocesses; Close releases them and is safe to call more
// than once, so a deferred Close covers every exit path.
type Session struct {
	backend Resolver
	log     *logrus.Entry

	mu     sync.Mutex
	closed bool
}

// OpenSession wraps backend in a managed session
func OpenSession(backend Resolver) *Session {
	log := logrus.WithField("component", "resolver")
	log.Debug("resolver session opened")
	return &Session{
		backend: backend,
		log:     log,
	}
}

// Resolve delegates to the backend, failing if the session is closed
func (s *Session) Resolve(ctx context.Context, specs []string, repos []config.Repository, gpgKeys []string) (*Resolution, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.log.WithField("specs", len(specs)).Debug("resolving package specs")
	return s.backend.Resolve(ctx, specs, repos, gpgKeys)
}

// InstallRoot delegates to the backend, failing if the session is closed
func (s *Session) InstallRoot(ctx context.Context, res *Resolution, dest string) error {
	if err := s.check(); err != nil {
		return err
	}
	s.log.WithField("dest", dest).Debug("installing root filesystem")
	return s.backend.InstallRoot(ctx, res, dest)
}

// Close releases the backend. When the backend implements io.Closer its
// Close error is returned; subsequent calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.log.Debug("resolver session closed")
	if closer, ok := s.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Session) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}
