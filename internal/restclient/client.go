package restclient

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mjell/jumpgate/internal/logging"
	"github.com/mjell/jumpgate/internal/session"
)

// Gateway is what the client needs from a session: command execution and
// remote file staging for request bodies.
type Gateway interface {
	Run(ctx context.Context, req session.Request) (session.Result, error)
	Exists(ctx context.Context, path string, sudo bool) (bool, error)
	WriteFile(ctx context.Context, remotePath string, content []byte, opts session.FileOptions) error
	RemoveFile(ctx context.Context, path string) error
}

// Client issues HTTP requests by running curl on a gateway host, so the
// target only sees traffic originating from the gateway.
type Client struct {
	gw Gateway
}

// New creates a Client over an established gateway session.
func New(gw Gateway) *Client {
	return &Client{gw: gw}
}

// BasicAuth carries credentials for HTTP basic authentication.
type BasicAuth struct {
	User     string
	Password string
}

// RequestOptions tune one HTTP request.
type RequestOptions struct {
	// Params is sent percent-encoded in the query string.
	Params map[string]string

	// Headers are additional request headers.
	Headers map[string]string

	// Data is an inline request body. Mutually exclusive with RemoteFile
	// and LocalFile.
	Data string

	// RemoteFile is a path on the gateway host whose content becomes the
	// request body.
	RemoteFile string

	// LocalFile is a local path whose content becomes the request body.
	// It is staged on the gateway before the call and removed after.
	LocalFile string

	// HeadersOnly requests status line and headers without a body.
	HeadersOnly bool

	// Auth enables basic authentication.
	Auth *BasicAuth

	// SkipVerify disables TLS certificate verification.
	SkipVerify bool

	// Silence controls command logging; credentials in the command line
	// are concealed by default.
	Silence session.Silence
}

// Request performs one HTTP request through the gateway and decodes the
// response.
func (c *Client) Request(ctx context.Context, method, uri string, opts RequestOptions) (*HTTPResponse, error) {
	method = strings.ToUpper(method)

	bodyArg, cleanup, err := c.stageBody(ctx, opts)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	cmd := buildCommand(method, uri, opts, bodyArg)

	silence := opts.Silence
	if opts.Auth != nil && !silence.Quiet() {
		// Never let basic-auth credentials reach the logs verbatim.
		silence = session.RedactPatterns(`-u \S+`)
	}

	result, err := c.gw.Run(ctx, session.Request{
		Command:       cmd,
		AcceptFailure: true,
		Silence:       silence,
	})
	if err != nil {
		return nil, err
	}

	// curl reports a header-only response to HEAD as a partial transfer
	// (exit 18).
	if result.ExitCode != 0 && !(result.ExitCode == 18 && method == "HEAD") {
		return nil, &Error{
			Message: fmt.Sprintf("remote command (%s) returned exit status (%d)", result.Command, result.ExitCode),
			Command: result.Command,
			Output:  result.Output,
		}
	}

	logging.Debug().
		Str("method", method).
		Str("uri", uri).
		Int("exit_code", result.ExitCode).
		Msg("remote http request completed")

	return ParseHTTPResponse(result.Output)
}

// stageBody resolves the request body source into a curl -d argument,
// uploading a local file to the gateway when needed.
func (c *Client) stageBody(ctx context.Context, opts RequestOptions) (string, func(), error) {
	switch {
	case opts.LocalFile != "":
		info, err := os.Stat(opts.LocalFile)
		if err != nil || info.IsDir() {
			return "", nil, &Error{Message: fmt.Sprintf("invalid file path given '%s'", opts.LocalFile)}
		}
		content, err := os.ReadFile(opts.LocalFile)
		if err != nil {
			return "", nil, &Error{Message: fmt.Sprintf("read local file %s: %v", opts.LocalFile, err)}
		}

		staged := "/tmp/" + uuid.NewString() + "-" + filepath.Base(opts.LocalFile)
		if err := c.gw.WriteFile(ctx, staged, content, session.FileOptions{}); err != nil {
			return "", nil, err
		}
		cleanup := func() {
			if err := c.gw.RemoveFile(ctx, staged); err != nil {
				logging.Warn().Err(err).Str("path", staged).Msg("failed to remove staged request body")
			}
		}
		return "-d @" + staged + " ", cleanup, nil

	case opts.RemoteFile != "":
		exists, err := c.gw.Exists(ctx, opts.RemoteFile, false)
		if err != nil {
			return "", nil, err
		}
		if !exists {
			return "", nil, &Error{Message: fmt.Sprintf("invalid remote file path given '%s'", opts.RemoteFile)}
		}
		return "-d @" + opts.RemoteFile + " ", nil, nil

	case opts.Data != "":
		return "-d '" + strings.ReplaceAll(opts.Data, "'", `'\''`) + "' ", nil, nil
	}

	return "", nil, nil
}

// buildCommand assembles the curl invocation. HTTP 1.0 is forced because
// the decoder does not handle chunked transfer encoding.
func buildCommand(method, uri string, opts RequestOptions, bodyArg string) string {
	var b strings.Builder
	b.WriteString("curl -is --http1.0 ")

	if opts.SkipVerify {
		b.WriteString("-k ")
	}
	if opts.HeadersOnly {
		b.WriteString("-I ")
	}
	if opts.Auth != nil {
		fmt.Fprintf(&b, "-u %s:%s ", opts.Auth.User, opts.Auth.Password)
	}

	fmt.Fprintf(&b, "-X %s ", method)

	for _, key := range sortedKeys(opts.Headers) {
		fmt.Fprintf(&b, "-H \"%s:%s\" ", key, opts.Headers[key])
	}

	b.WriteString("\"" + uri)
	if len(opts.Params) > 0 {
		pairs := make([]string, 0, len(opts.Params))
		for _, key := range sortedKeys(opts.Params) {
			pairs = append(pairs, url.QueryEscape(key)+"="+url.QueryEscape(opts.Params[key]))
		}
		b.WriteString("?" + strings.Join(pairs, "&"))
	}
	b.WriteString("\" ")

	b.WriteString(bodyArg)

	return strings.TrimSpace(b.String())
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get sends a GET request.
func (c *Client) Get(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "GET", uri, opts)
}

// Head sends a HEAD request.
func (c *Client) Head(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "HEAD", uri, opts)
}

// Options sends an OPTIONS request.
func (c *Client) Options(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "OPTIONS", uri, opts)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "POST", uri, opts)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "PUT", uri, opts)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "PATCH", uri, opts)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, uri string, opts RequestOptions) (*HTTPResponse, error) {
	return c.Request(ctx, "DELETE", uri, opts)
}
