// Package transport provides the SSH implementation of the session
// transport interfaces: connection dialing (direct or through a tunnel),
// command channels with a remote PTY, and SFTP file transfer.
package transport

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mjell/jumpgate/internal/logging"
	"github.com/mjell/jumpgate/internal/session"
)

// DefaultConnectTimeout bounds the TCP dial and SSH handshake.
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens SSH connections. It implements session.Dialer.
type Dialer struct {
	// ConnectTimeout bounds the TCP dial and handshake (default 10s).
	ConnectTimeout time.Duration

	// KnownHostsFile overrides ~/.ssh/known_hosts for host key checks.
	KnownHostsFile string

	// InsecureIgnoreHostKey disables host key verification entirely.
	InsecureIgnoreHostKey bool

	// AcceptUnknownHostKeys records unknown host keys in memory for the
	// lifetime of the process instead of rejecting them.
	AcceptUnknownHostKeys bool

	hostKeys *memoryHostKeys
}

// Dial connects to host:port as user described by creds. When tunnel is
// non-nil the TCP stream is opened through it instead of directly, which is
// how sessions behind a jump host are reached.
func (d *Dialer) Dial(host string, port int, creds session.Credentials, tunnel session.Tunneler) (session.Conn, error) {
	config, err := d.clientConfig(creds)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var raw net.Conn
	if tunnel != nil {
		raw, err = tunnel.OpenTunnel(host, port)
		if err != nil {
			return nil, fmt.Errorf("open tunnel to %s: %w", addr, err)
		}
	} else {
		dialer := net.Dialer{Timeout: d.timeout()}
		raw, err = dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(raw, addr, config)
	if err != nil {
		raw.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}

	logging.Debug().
		Str("addr", addr).
		Str("user", config.User).
		Bool("tunneled", tunnel != nil).
		Msg("ssh connection established")

	conn := newConn(ssh.NewClient(sshConn, chans, reqs))
	if d.hostKeys != nil {
		// A key auto-added for this connection is only trusted while the
		// connection lives.
		conn.onClose = func() { d.hostKeys.forget(addr) }
	}
	return conn, nil
}

func (d *Dialer) timeout() time.Duration {
	if d.ConnectTimeout > 0 {
		return d.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (d *Dialer) clientConfig(creds session.Credentials) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if creds.UseAgent {
		if auth := agentAuth(); auth != nil {
			authMethods = append(authMethods, auth)
		}
	}

	if creds.KeyFile != "" {
		auth, err := publicKeyAuth(creds.KeyFile, creds.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key file auth: %w", err)
		}
		authMethods = append(authMethods, auth)
	}

	if creds.KeyFile == "" && !creds.UseAgent {
		for _, keyPath := range defaultKeyPaths() {
			if auth, err := publicKeyAuth(keyPath, ""); err == nil {
				authMethods = append(authMethods, auth)
				break
			}
		}
	}

	if creds.Password != "" {
		authMethods = append(authMethods, ssh.Password(creds.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	callback, err := d.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            creds.User,
		Auth:            authMethods,
		HostKeyCallback: callback,
		Timeout:         d.timeout(),
	}, nil
}

func (d *Dialer) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if d.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	knownHostsPath := d.KnownHostsFile
	if knownHostsPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, ".ssh", "known_hosts")
			if _, err := os.Stat(candidate); err == nil {
				knownHostsPath = candidate
			}
		}
	}

	var known ssh.HostKeyCallback
	if knownHostsPath != "" {
		var err error
		known, err = knownhosts.New(knownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("known hosts %s: %w", knownHostsPath, err)
		}
	}

	if d.AcceptUnknownHostKeys {
		if d.hostKeys == nil {
			d.hostKeys = newMemoryHostKeys()
		}
		return d.hostKeys.callback(known), nil
	}

	if known == nil {
		return nil, fmt.Errorf("no known_hosts file found and unknown host keys are not accepted")
	}
	return known, nil
}

func agentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}

func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}
