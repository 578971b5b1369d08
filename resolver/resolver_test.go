package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/bibin-skaria/ocidir/config"
)

type fakeBackend struct {
	resolved  int
	installed int
	closedN   int
	failClose bool
}

func (f *fakeBackend) Resolve(ctx context.Context, specs []string, repos []config.Repository, gpgKeys []string) (*Resolution, error) {
	f.resolved++
	pkgs := make([]Package, 0, len(specs))
	for _, spec := range specs {
		pkgs = append(pkgs, Package{Name: spec, Version: "1.0-1"})
	}
	return &Resolution{Packages: pkgs}, nil
}

func (f *fakeBackend) InstallRoot(ctx context.Context, res *Resolution, dest string) error {
	f.installed++
	return nil
}

func (f *fakeBackend) Close() error {
	f.closedN++
	if f.failClose {
		return fmt.Errorf("plugin unload failed")
	}
	return nil
}

func TestSessionDelegates(t *testing.T) {
	backend := &fakeBackend{}
	session := OpenSession(backend)
	defer session.Close()

	res, err := session.Resolve(context.Background(), []string{"bash"}, nil, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(res.Packages) != 1 || res.Packages[0].Name != "bash" {
		t.Errorf("Unexpected resolution: %+v", res)
	}

	if err := session.InstallRoot(context.Background(), res, t.TempDir()); err != nil {
		t.Fatalf("InstallRoot failed: %v", err)
	}
	if backend.resolved != 1 || backend.installed != 1 {
		t.Errorf("Expected one call each, got resolve=%d install=%d", backend.resolved, backend.installed)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	backend := &fakeBackend{}
	session := OpenSession(backend)

	if err := session.Close(); err != nil {
		t.Fatalf("First Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if backend.closedN != 1 {
		t.Errorf("Expected backend closed once, got %d", backend.closedN)
	}
}

func TestSessionRejectsUseAfterClose(t *testing.T) {
	session := OpenSession(&fakeBackend{})
	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := session.Resolve(context.Background(), []string{"bash"}, nil, nil); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
	if err := session.InstallRoot(context.Background(), &Resolution{}, "/tmp"); err != ErrSessionClosed {
		t.Errorf("Expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionClosePropagatesBackendError(t *testing.T) {
	backend := &fakeBackend{failClose: true}
	session := OpenSession(backend)

	if err := session.Close(); err == nil {
		t.Fatal("Expected Close to propagate backend error")
	}
}
