// Package session implements proxy-chained remote sessions and the command
// execution engine driving them. A Session owns one transport connection to
// one host and can open further sessions through it, forming a tree rooted at
// directly-dialed hosts with one edge per gateway hop.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mjell/jumpgate/internal/logging"
)

const (
	// DefaultPort is the standard ssh port.
	DefaultPort = 22

	// DefaultConnectRetryInterval is the pause between connection attempts
	// when the caller does not choose one.
	DefaultConnectRetryInterval = 10 * time.Second
)

// ConfirmFunc asks the caller a yes/no question and blocks, without timeout,
// until it is answered. def is returned on an empty answer. Implementations
// must treat an interrupt received while prompting as "no".
type ConfirmFunc func(question string, def bool) bool

// registryKey identifies a child session under its parent. Host and user are
// compared case-insensitively.
type registryKey struct {
	host string
	port int
	user string
}

func newRegistryKey(host string, port int, user string) registryKey {
	return registryKey{
		host: strings.ToLower(host),
		port: port,
		user: strings.ToLower(user),
	}
}

// Options configures a new Session.
type Options struct {
	// Port defaults to 22.
	Port int

	// Credentials authenticate the connection.
	Credentials Credentials

	// Tunnel, when set, routes the connection through an already open
	// parent connection instead of a fresh socket. The reference is only
	// used while connecting.
	Tunnel Tunneler

	// Confirm answers the terminate-remote-command question when a run is
	// interrupted. Defaults to a stdin prompt.
	Confirm ConfirmFunc
}

// Session is one transport connection to one host plus the child sessions
// opened through it. A Session is driven by one logical caller at a time.
type Session struct {
	Host string
	Port int
	User string

	creds   Credentials
	dialer  Dialer
	tunnel  Tunneler
	confirm ConfirmFunc

	conn           Conn
	connectRetries int
	children       map[registryKey]*Session
}

// New creates a Session. It does not connect; call Open, or rely on the lazy
// connect Run and RemoteSession perform.
func New(dialer Dialer, host, user string, opts Options) *Session {
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}
	creds := opts.Credentials
	creds.User = user
	return &Session{
		Host:     host,
		Port:     port,
		User:     user,
		creds:    creds,
		dialer:   dialer,
		tunnel:   opts.Tunnel,
		confirm:  opts.Confirm,
		children: make(map[registryKey]*Session),
	}
}

// Active reports whether the transport connection exists and is usable.
func (s *Session) Active() bool {
	return s.conn != nil && s.conn.Active()
}

// Open establishes the transport connection. It is a no-op on an active
// session. On failure it waits retryInterval and tries again while the retry
// budget lasts; a negative budget retries forever. The attempt counter
// persists across Open calls on the same Session.
func (s *Session) Open(ctx context.Context, retry int, retryInterval time.Duration) error {
	if s.Active() {
		return nil
	}
	if retryInterval <= 0 {
		retryInterval = DefaultConnectRetryInterval
	}

	log := logging.WithHost(s.Host, s.Port)
	for {
		conn, err := s.dialer.Dial(s.Host, s.Port, s.creds, s.tunnel)
		if err == nil {
			s.conn = conn
			log.Info().Str("user", s.User).Msg("connected")
			return nil
		}

		if retry < 0 || s.connectRetries < retry {
			log.Warn().
				Int("attempt", s.connectRetries).
				Err(err).
				Msg("connection not yet possible, retrying")
			s.connectRetries++
			select {
			case <-time.After(retryInterval):
			case <-ctx.Done():
				return &ConnectionError{Host: s.Host, Port: s.Port, User: s.User, Err: ctx.Err()}
			}
			continue
		}

		return &ConnectionError{Host: s.Host, Port: s.Port, User: s.User, Err: err}
	}
}

// Close recursively closes every child session, then tears down the own
// transport connection. Safe to call on a never-opened or already-closed
// session, any number of times.
func (s *Session) Close() error {
	for _, child := range s.children {
		_ = child.Close()
	}

	if s.conn == nil {
		return nil
	}

	var err error
	if s.conn.Active() {
		logging.Debug().Str("host", s.Host).Int("port", s.Port).Msg("closing connection")
		err = s.conn.Close()
	}
	s.conn = nil
	return err
}

// RemoteOptions configures a session opened through a gateway.
type RemoteOptions struct {
	// Port defaults to 22.
	Port int

	// User defaults to the gateway session's user.
	User string

	// Credentials authenticate the remote connection.
	Credentials Credentials

	// Retry and RetryInterval bound the connection attempts, with Open's
	// semantics.
	Retry         int
	RetryInterval time.Duration
}

// RemoteSession returns a session to host tunneled through s, opening s
// first when needed. Repeated calls with the same (host, port, user) return
// the same instance as long as it stays active; a stale entry is discarded
// and replaced, never reused.
func (s *Session) RemoteSession(ctx context.Context, host string, opts RemoteOptions) (*Session, error) {
	if !s.Active() {
		if err := s.Open(ctx, 0, 0); err != nil {
			return nil, err
		}
	}

	user := opts.User
	if user == "" {
		user = s.User
	}
	port := opts.Port
	if port == 0 {
		port = DefaultPort
	}

	key := newRegistryKey(host, port, user)
	if child, ok := s.children[key]; ok {
		if child.Active() {
			return child, nil
		}
		delete(s.children, key)
	}

	logging.Info().
		Str("host", host).
		Int("port", port).
		Str("gateway", s.Host).
		Str("user", user).
		Msg("connecting through gateway")

	child := New(s.dialer, host, user, Options{
		Port:        port,
		Credentials: opts.Credentials,
		Tunnel:      s.conn,
		Confirm:     s.confirm,
	})
	if err := child.Open(ctx, opts.Retry, opts.RetryInterval); err != nil {
		return nil, err
	}

	s.children[key] = child
	return child, nil
}

// Run executes one command request on the remote host, opening the session
// first when needed. See Request for the retry, timeout, input injection and
// silence knobs.
func (s *Session) Run(ctx context.Context, req Request) (Result, error) {
	cmd, codes, err := req.normalize()
	if err != nil {
		return Result{}, err
	}

	if !s.Active() {
		if err := s.Open(ctx, 0, 0); err != nil {
			return Result{}, err
		}
	}

	user := s.User
	executed := cmd
	if req.User != "" {
		user = req.User
		executed = impersonate(req.User, cmd)
	}

	logCmd := req.Silence.Conceal(cmd)
	if !req.Silence.On() {
		logging.Debug().
			Str("host", s.Host).
			Str("user", user).
			Str("cmd", logCmd).
			Msg("running command")
	}

	ex := &executor{
		conn:    s.conn,
		req:     req,
		cmd:     executed,
		logCmd:  logCmd,
		codes:   codes,
		confirm: s.confirm,
	}
	return ex.run(ctx)
}

// CommandOutput runs cmd and returns its trimmed output.
func (s *Session) CommandOutput(ctx context.Context, cmd string) (string, error) {
	result, err := s.Run(ctx, Request{Command: cmd})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// ExitCode runs cmd and returns its exit code; a failing exit code is not an
// error.
func (s *Session) ExitCode(ctx context.Context, cmd string) (int, error) {
	result, err := s.Run(ctx, Request{Command: cmd, AcceptFailure: true})
	if err != nil {
		return 0, err
	}
	return result.ExitCode, nil
}

// impersonate wraps cmd to run as user through a login shell, so shell
// builtins (source, ...) keep working.
func impersonate(user, cmd string) string {
	return fmt.Sprintf(`sudo su - %s -c "%s"`, user, strings.ReplaceAll(cmd, `"`, `\"`))
}
