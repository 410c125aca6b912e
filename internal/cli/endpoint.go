package cli

import (
	"context"
	"fmt"
	"net"
	"os/user"
	"strconv"
	"strings"

	"github.com/mjell/jumpgate/internal/config"
	"github.com/mjell/jumpgate/internal/session"
	"github.com/mjell/jumpgate/internal/transport"
)

// endpoint is one hop in a gateway chain.
type endpoint struct {
	host    string
	port    int
	user    string
	keyFile string
}

// parseEndpoint parses a [user@]host[:port] spec. A bare name matching a
// configured gateway resolves to that gateway's settings.
func parseEndpoint(spec string, cfg *config.Config) (endpoint, error) {
	if cfg != nil {
		if gw, ok := cfg.Gateway(spec); ok {
			return endpoint{host: gw.Host, port: gw.Port, user: gw.User, keyFile: gw.KeyFile}, nil
		}
	}

	ep := endpoint{port: session.DefaultPort}

	rest := spec
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		ep.user = rest[:at]
		rest = rest[at+1:]
	}

	if host, port, err := net.SplitHostPort(rest); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return endpoint{}, fmt.Errorf("invalid port in endpoint %q", spec)
		}
		ep.host = host
		ep.port = p
	} else {
		ep.host = rest
	}

	if ep.host == "" {
		return endpoint{}, fmt.Errorf("invalid endpoint %q: host is required", spec)
	}

	if ep.user == "" {
		current, err := user.Current()
		if err != nil {
			return endpoint{}, fmt.Errorf("endpoint %q: no user given and none detected", spec)
		}
		ep.user = current.Username
	}

	return ep, nil
}

// connect opens the gateway chain: the first spec becomes the root session,
// every following spec a remote session tunneled through the previous one.
// It returns the far-end session and a cleanup that closes the whole tree.
func (a *app) connect(ctx context.Context, specs []string) (*session.Session, func(), error) {
	if len(specs) == 0 {
		return nil, nil, fmt.Errorf("at least one gateway endpoint is required")
	}

	endpoints := make([]endpoint, 0, len(specs))
	for _, spec := range specs {
		ep, err := parseEndpoint(spec, a.cfg)
		if err != nil {
			return nil, nil, err
		}
		endpoints = append(endpoints, ep)
	}

	var password string
	if a.askPass {
		var err error
		password, err = promptPassword(fmt.Sprintf("Password for %s@%s: ", endpoints[0].user, endpoints[0].host))
		if err != nil {
			return nil, nil, err
		}
	}

	dialer := &transport.Dialer{
		ConnectTimeout:        a.cfg.SSH.ConnectTimeout,
		KnownHostsFile:        a.cfg.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: a.cfg.SSH.InsecureIgnoreHostKey,
		AcceptUnknownHostKeys: a.cfg.SSH.AcceptUnknownHostKeys,
	}

	root := session.New(dialer, endpoints[0].host, endpoints[0].user, session.Options{
		Port: endpoints[0].port,
		Credentials: session.Credentials{
			Password: password,
			KeyFile:  endpoints[0].keyFile,
			UseAgent: true,
		},
		Confirm: confirmPrompt,
	})

	if err := root.Open(ctx, a.cfg.SSH.ConnectRetries, a.cfg.SSH.RetryInterval); err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = root.Close() }

	current := root
	for _, ep := range endpoints[1:] {
		next, err := current.RemoteSession(ctx, ep.host, session.RemoteOptions{
			Port: ep.port,
			User: ep.user,
			Credentials: session.Credentials{
				Password: password,
				KeyFile:  ep.keyFile,
				UseAgent: true,
			},
			Retry:         a.cfg.SSH.ConnectRetries,
			RetryInterval: a.cfg.SSH.RetryInterval,
		})
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		current = next
	}

	return current, cleanup, nil
}
