package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mjell/jumpgate/internal/restclient"
	"github.com/mjell/jumpgate/internal/session"
)

func newHTTPCmd(a *app) *cobra.Command {
	var (
		via        []string
		headers    []string
		params     []string
		data       string
		localFile  string
		remoteFile string
		auth       string
		headOnly   bool
		skipVerify bool
		silent     bool
	)

	cmd := &cobra.Command{
		Use:   "http [flags] method url",
		Short: "Issue an HTTP request from the far end of a gateway chain",
		Long: "Http runs a command-line HTTP client on the host reached through the\n" +
			"gateway chain, so the target only sees traffic from that host, and\n" +
			"decodes the captured output into a structured response.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			opts := restclient.RequestOptions{
				Data:        data,
				LocalFile:   localFile,
				RemoteFile:  remoteFile,
				HeadersOnly: headOnly,
				SkipVerify:  skipVerify,
			}
			if silent {
				opts.Silence = session.SilenceOn()
			}

			for _, header := range headers {
				key, value, found := strings.Cut(header, ":")
				if !found {
					return fmt.Errorf("invalid --header %q, expected key:value", header)
				}
				if opts.Headers == nil {
					opts.Headers = make(map[string]string)
				}
				opts.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}

			for _, param := range params {
				key, value, found := strings.Cut(param, "=")
				if !found {
					return fmt.Errorf("invalid --param %q, expected key=value", param)
				}
				if opts.Params == nil {
					opts.Params = make(map[string]string)
				}
				opts.Params[key] = value
			}

			if auth != "" {
				user, password, found := strings.Cut(auth, ":")
				if !found {
					return fmt.Errorf("invalid --auth %q, expected user:password", auth)
				}
				opts.Auth = &restclient.BasicAuth{User: user, Password: password}
			}

			sess, cleanup, err := a.connect(ctx, via)
			if err != nil {
				return err
			}
			defer cleanup()

			resp, err := restclient.New(sess).Request(ctx, args[0], args[1], opts)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&via, "via", "v", nil, "Gateway endpoint user@host:port or configured name (repeatable, ordered)")
	flags.StringArrayVarP(&headers, "header", "H", nil, "Request header key:value (repeatable)")
	flags.StringArrayVarP(&params, "param", "P", nil, "Query parameter key=value (repeatable)")
	flags.StringVarP(&data, "data", "d", "", "Inline request body")
	flags.StringVar(&localFile, "local-file", "", "Local file whose content becomes the request body")
	flags.StringVar(&remoteFile, "remote-file", "", "Gateway-side file whose content becomes the request body")
	flags.StringVar(&auth, "auth", "", "Basic auth credentials user:password")
	flags.BoolVarP(&headOnly, "head-only", "I", false, "Request status line and headers only")
	flags.BoolVarP(&skipVerify, "insecure", "k", false, "Skip TLS certificate verification")
	flags.BoolVar(&silent, "silent", false, "Never log the client command text")
	_ = cmd.MarkFlagRequired("via")

	return cmd
}
