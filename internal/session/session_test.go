package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSession(script channelScript) (*Session, *fakeDialer) {
	dialer := &fakeDialer{script: script}
	sess := New(dialer, "gateway.example.com", "deploy", Options{})
	return sess, dialer
}

func TestOpenIsIdempotent(t *testing.T) {
	sess, dialer := newTestSession(channelScript{})
	ctx := context.Background()

	if err := sess.Open(ctx, 0, time.Millisecond); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sess.Open(ctx, 0, time.Millisecond); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if dialer.dials != 1 {
		t.Fatalf("expected 1 dial, got %d", dialer.dials)
	}
	if !sess.Active() {
		t.Fatal("expected session to be active")
	}
}

func TestOpenRetriesThenSucceeds(t *testing.T) {
	sess, dialer := newTestSession(channelScript{})
	dialer.failures = 2

	if err := sess.Open(context.Background(), 5, time.Millisecond); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if dialer.dials != 3 {
		t.Fatalf("expected 3 dials, got %d", dialer.dials)
	}
}

func TestOpenExhaustsRetryBudget(t *testing.T) {
	sess, dialer := newTestSession(channelScript{})
	dialer.failures = 100

	err := sess.Open(context.Background(), 2, time.Millisecond)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if connErr.Host != "gateway.example.com" || connErr.User != "deploy" {
		t.Fatalf("unexpected error context: %+v", connErr)
	}
	if dialer.dials != 3 {
		t.Fatalf("expected 3 dials (1 + 2 retries), got %d", dialer.dials)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sess, _ := newTestSession(channelScript{})
	ctx := context.Background()

	// Closing a never-opened session is safe.
	if err := sess.Close(); err != nil {
		t.Fatalf("Close on unopened session failed: %v", err)
	}

	if err := sess.Open(ctx, 0, time.Millisecond); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sess.Active() {
		t.Fatal("expected session to be inactive after Close")
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if sess.Active() {
		t.Fatal("expected session to stay inactive")
	}
}

func TestCloseCascadesToDescendants(t *testing.T) {
	sess, dialer := newTestSession(channelScript{})
	ctx := context.Background()

	child, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("RemoteSession failed: %v", err)
	}
	grandchild, err := child.RemoteSession(ctx, "db1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("nested RemoteSession failed: %v", err)
	}

	if !child.Active() || !grandchild.Active() {
		t.Fatal("expected whole chain to be active")
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sess.Active() || child.Active() || grandchild.Active() {
		t.Fatal("expected whole chain to be closed")
	}

	// Children were opened through their parent's connection.
	if len(dialer.conns) != 3 {
		t.Fatalf("expected 3 connections, got %d", len(dialer.conns))
	}
	if dialer.conns[1].tunnel != dialer.conns[0] {
		t.Fatal("child connection should tunnel through the root connection")
	}
	if dialer.conns[2].tunnel != dialer.conns[1] {
		t.Fatal("grandchild connection should tunnel through the child connection")
	}
}

func TestRemoteSessionIsCached(t *testing.T) {
	sess, _ := newTestSession(channelScript{})
	ctx := context.Background()

	first, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("RemoteSession failed: %v", err)
	}
	second, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("second RemoteSession failed: %v", err)
	}
	if first != second {
		t.Fatal("expected the same session instance for identical key")
	}

	// The key is case-insensitive.
	third, err := sess.RemoteSession(ctx, "APP1.Internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("third RemoteSession failed: %v", err)
	}
	if third != first {
		t.Fatal("expected case-insensitive key to hit the cache")
	}
}

func TestRemoteSessionReplacesStaleEntry(t *testing.T) {
	sess, _ := newTestSession(channelScript{})
	ctx := context.Background()

	first, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("RemoteSession failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("child Close failed: %v", err)
	}

	second, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("RemoteSession after close failed: %v", err)
	}
	if second == first {
		t.Fatal("expected a fresh session after the cached one went stale")
	}
	if !second.Active() {
		t.Fatal("expected replacement session to be active")
	}
}

func TestRemoteSessionDistinctUsersDistinctSessions(t *testing.T) {
	sess, _ := newTestSession(channelScript{})
	ctx := context.Background()

	asDeploy, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{})
	if err != nil {
		t.Fatalf("RemoteSession failed: %v", err)
	}
	asRoot, err := sess.RemoteSession(ctx, "app1.internal", RemoteOptions{User: "root"})
	if err != nil {
		t.Fatalf("RemoteSession as root failed: %v", err)
	}
	if asDeploy == asRoot {
		t.Fatal("expected distinct sessions for distinct users")
	}
	if asDeploy.User != "deploy" {
		t.Fatalf("expected inherited user deploy, got %q", asDeploy.User)
	}
}

func TestRemoteSessionOpensLazyParent(t *testing.T) {
	sess, dialer := newTestSession(channelScript{})

	if sess.Active() {
		t.Fatal("expected parent to start inactive")
	}
	if _, err := sess.RemoteSession(context.Background(), "app1.internal", RemoteOptions{}); err != nil {
		t.Fatalf("RemoteSession failed: %v", err)
	}
	if !sess.Active() {
		t.Fatal("expected parent to be opened lazily")
	}
	if dialer.dials != 2 {
		t.Fatalf("expected 2 dials (parent + child), got %d", dialer.dials)
	}
}

func TestRegistryKeyNormalization(t *testing.T) {
	a := newRegistryKey("Host.Example.COM", 22, "Deploy")
	b := newRegistryKey("host.example.com", 22, "deploy")
	if a != b {
		t.Fatal("expected keys to be equal regardless of case")
	}
	c := newRegistryKey("host.example.com", 2222, "deploy")
	if a == c {
		t.Fatal("expected different ports to produce different keys")
	}
}

func TestCommandOutputAndExitCode(t *testing.T) {
	sess, _ := newTestSession(channelScript{chunks: []string{"  gateway.example.com\r\n"}})
	ctx := context.Background()

	out, err := sess.CommandOutput(ctx, "hostname")
	if err != nil {
		t.Fatalf("CommandOutput failed: %v", err)
	}
	if out != "gateway.example.com" {
		t.Fatalf("expected trimmed output, got %q", out)
	}

	failing, _ := newTestSession(channelScript{exit: 127})
	code, err := failing.ExitCode(ctx, "missing_command")
	if err != nil {
		t.Fatalf("ExitCode failed: %v", err)
	}
	if code != 127 {
		t.Fatalf("expected exit code 127, got %d", code)
	}
}
