package cli

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mjell/jumpgate/internal/session"
)

func newPutCmd(a *app) *cobra.Command {
	var (
		via      []string
		sudo     bool
		sudoUser string
		owner    string
		mode     string
	)

	cmd := &cobra.Command{
		Use:   "put [flags] local-path remote-path",
		Short: "Upload a file to the far end of a gateway chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sess, cleanup, err := a.connect(ctx, via)
			if err != nil {
				return err
			}
			defer cleanup()

			return sess.Put(ctx, args[0], args[1], session.FileOptions{
				Sudo:        sudo,
				SudoUser:    sudoUser,
				Owner:       owner,
				Permissions: mode,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&via, "via", "v", nil, "Gateway endpoint user@host:port or configured name (repeatable, ordered)")
	flags.BoolVar(&sudo, "sudo", false, "Stage through /tmp and move into place with sudo")
	flags.StringVar(&sudoUser, "sudo-user", "", "User the staging commands run as (default root)")
	flags.StringVar(&owner, "owner", "", "Owner applied to the uploaded file (user or user:group)")
	flags.StringVar(&mode, "mode", "", "Permissions applied to the uploaded file (e.g. 600)")
	_ = cmd.MarkFlagRequired("via")

	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	var (
		via      []string
		sudo     bool
		sudoUser string
	)

	cmd := &cobra.Command{
		Use:   "get [flags] remote-path local-path",
		Short: "Download a file from the far end of a gateway chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			sess, cleanup, err := a.connect(ctx, via)
			if err != nil {
				return err
			}
			defer cleanup()

			return sess.Get(ctx, args[0], args[1], session.FileOptions{
				Sudo:     sudo,
				SudoUser: sudoUser,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVarP(&via, "via", "v", nil, "Gateway endpoint user@host:port or configured name (repeatable, ordered)")
	flags.BoolVar(&sudo, "sudo", false, "Copy through /tmp with sudo for files the login user cannot read")
	flags.StringVar(&sudoUser, "sudo-user", "", "User the staging commands run as (default root)")
	_ = cmd.MarkFlagRequired("via")

	return cmd
}
