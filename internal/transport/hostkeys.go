package transport

import (
	"errors"
	"net"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/mjell/jumpgate/internal/logging"
)

// memoryHostKeys records host keys first seen during this process and
// verifies later connections against them. Nothing is written to disk.
type memoryHostKeys struct {
	mu   sync.Mutex
	keys map[string]ssh.PublicKey
}

func newMemoryHostKeys() *memoryHostKeys {
	return &memoryHostKeys{keys: make(map[string]ssh.PublicKey)}
}

// callback chains an optional known_hosts check with the in-memory store:
// a key the known_hosts file vouches for passes, a key seen before must
// match, and a never-seen key is recorded and accepted.
func (m *memoryHostKeys) callback(known ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if known != nil {
			err := known(hostname, remote, key)
			if err == nil {
				return nil
			}
			var keyErr *knownhosts.KeyError
			if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
				// The file knows this host under a different key.
				return err
			}
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		if seen, ok := m.keys[hostname]; ok {
			if string(seen.Marshal()) != string(key.Marshal()) {
				return errors.New("host key changed for " + hostname)
			}
			return nil
		}
		m.keys[hostname] = key
		logging.Debug().
			Str("host", hostname).
			Str("fingerprint", ssh.FingerprintSHA256(key)).
			Msg("recorded new host key")
		return nil
	}
}

// forget drops the recorded key for a host.
func (m *memoryHostKeys) forget(hostname string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, hostname)
}
