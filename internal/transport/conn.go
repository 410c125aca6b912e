package transport

import (
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/mjell/jumpgate/internal/session"
)

// Conn is an established SSH connection. It implements session.Conn.
type Conn struct {
	mu      sync.Mutex
	client  *ssh.Client
	sftp    *sftp.Client
	closed  bool
	onClose func()
}

func newConn(client *ssh.Client) *Conn {
	c := &Conn{client: client}
	go func() {
		// Wait returns once the underlying connection dies, whichever
		// side caused it.
		_ = client.Wait()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}()
	return c
}

// Active reports whether the connection is still usable.
func (c *Conn) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// OpenTunnel opens a raw stream to host:port through this connection. The
// remote side sees a connection originating from this connection's host.
func (c *Conn) OpenTunnel(host string, port int) (net.Conn, error) {
	c.mu.Lock()
	client := c.client
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("connection is closed")
	}
	return client.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// OpenChannel opens a fresh command channel backed by an SSH session with a
// pseudo-terminal.
func (c *Conn) OpenChannel() (session.Channel, error) {
	c.mu.Lock()
	client := c.client
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("connection is closed")
	}

	sess, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("new ssh session: %w", err)
	}
	return newChannel(sess)
}

// Files returns the SFTP-backed file transfer facility, creating the SFTP
// subsystem on first use.
func (c *Conn) Files() (session.FileTransfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("connection is closed")
	}
	if c.sftp == nil {
		client, err := sftp.NewClient(c.client)
		if err != nil {
			return nil, fmt.Errorf("create sftp client: %w", err)
		}
		c.sftp = client
	}
	return &sftpFiles{client: c.sftp}, nil
}

// Close tears down the connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.sftp != nil {
		_ = c.sftp.Close()
		c.sftp = nil
	}
	err := c.client.Close()
	if c.onClose != nil {
		c.onClose()
	}
	return err
}
