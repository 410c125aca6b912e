package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mjell/jumpgate/internal/logging"
)

// FileOptions tune the remote file helpers.
type FileOptions struct {
	// Sudo stages the file through a temporary path so locations the
	// session user cannot write (or read) directly still work.
	Sudo bool

	// SudoUser is the user the staging commands run as (default root).
	SudoUser string

	// Owner is applied to the final file with chown. "user" is shorthand
	// for "user:user".
	Owner string

	// Permissions is applied to the final file with chmod (e.g. "600").
	Permissions string
}

func (o FileOptions) sudoUser() string {
	if o.SudoUser != "" {
		return o.SudoUser
	}
	return "root"
}

// tempPath returns a random path under /tmp for sudo staging.
func tempPath() string {
	return "/tmp/" + uuid.NewString()
}

func (s *Session) files(ctx context.Context) (FileTransfer, error) {
	if !s.Active() {
		if err := s.Open(ctx, 0, 0); err != nil {
			return nil, err
		}
	}
	return s.conn.Files()
}

// Exists checks whether path exists on the remote host. With sudo it can see
// paths the session user has no access to.
func (s *Session) Exists(ctx context.Context, path string, sudo bool) (bool, error) {
	cmd := "ls " + path
	if sudo {
		cmd = "sudo " + cmd
	}
	result, err := s.Run(ctx, Request{
		Command:       cmd,
		AcceptFailure: true,
		Silence:       SilenceOn(),
	})
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// WriteFile creates a remote file with the given content. With sudo the
// content is staged under /tmp and moved into place; owner and permissions
// are applied afterwards when requested.
func (s *Session) WriteFile(ctx context.Context, remotePath string, content []byte, opts FileOptions) error {
	logging.Debug().
		Str("host", s.Host).
		Str("path", remotePath).
		Str("user", s.User).
		Msg("creating remote file")

	ft, err := s.files(ctx)
	if err != nil {
		return err
	}

	copyPath := remotePath
	if opts.Sudo {
		copyPath = tempPath()
	}

	if err := ft.WriteFile(copyPath, content, 0o644); err != nil {
		return fmt.Errorf("write remote file %s: %w", copyPath, err)
	}

	if opts.Sudo {
		move := fmt.Sprintf("mv %s %s", copyPath, remotePath)
		if _, err := s.Run(ctx, Request{Command: move, User: opts.sudoUser(), Silence: SilenceOn()}); err != nil {
			return err
		}
	}

	if opts.Owner != "" {
		owner := opts.Owner
		if !strings.Contains(owner, ":") {
			owner = owner + ":" + owner
		}
		chown := fmt.Sprintf("sudo chown %s %s", owner, remotePath)
		if _, err := s.Run(ctx, Request{Command: chown, Silence: SilenceOn()}); err != nil {
			return err
		}
	}

	if opts.Permissions != "" {
		chmod := fmt.Sprintf("sudo chmod %s %s", opts.Permissions, remotePath)
		if _, err := s.Run(ctx, Request{Command: chmod, Silence: SilenceOn()}); err != nil {
			return err
		}
	}

	return nil
}

// Put uploads a local file to the remote host.
func (s *Session) Put(ctx context.Context, localPath, remotePath string, opts FileOptions) error {
	info, err := os.Stat(localPath)
	if err != nil || info.IsDir() {
		return fmt.Errorf("local file '%s' does not exist", localPath)
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read local file %s: %w", localPath, err)
	}

	logging.Debug().
		Str("local", localPath).
		Str("host", s.Host).
		Str("remote", remotePath).
		Msg("uploading file")

	return s.WriteFile(ctx, remotePath, content, opts)
}

// Get downloads a remote file. With sudo the file is first copied to a
// temporary location readable by the session user, and the copy is removed
// afterwards. When localPath is a directory the remote file name is kept.
func (s *Session) Get(ctx context.Context, remotePath, localPath string, opts FileOptions) error {
	copyPath := remotePath
	if opts.Sudo {
		copyPath = tempPath()
		cp := fmt.Sprintf("cp %s %s", remotePath, copyPath)
		if _, err := s.Run(ctx, Request{Command: cp, User: opts.sudoUser(), Silence: SilenceOn()}); err != nil {
			return err
		}
		defer func() {
			rm := "rm " + copyPath
			_, _ = s.Run(ctx, Request{Command: rm, User: opts.sudoUser(), Silence: SilenceOn()})
		}()
	}

	if info, err := os.Stat(localPath); err == nil && info.IsDir() {
		localPath = filepath.Join(localPath, filepath.Base(remotePath))
	}

	ft, err := s.files(ctx)
	if err != nil {
		return err
	}

	content, err := ft.ReadFile(copyPath)
	if err != nil {
		return fmt.Errorf("read remote file %s: %w", copyPath, err)
	}

	if err := os.WriteFile(localPath, content, 0o644); err != nil {
		return fmt.Errorf("write local file %s: %w", localPath, err)
	}
	return nil
}

// RemoveFile deletes a remote file.
func (s *Session) RemoveFile(ctx context.Context, path string) error {
	ft, err := s.files(ctx)
	if err != nil {
		return err
	}
	return ft.Remove(path)
}
