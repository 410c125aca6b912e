package transport

import (
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/sftp"
)

// sftpFiles adapts an sftp.Client to session.FileTransfer.
type sftpFiles struct {
	client *sftp.Client
}

func (f *sftpFiles) ReadFile(remotePath string) ([]byte, error) {
	file, err := f.client.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", remotePath, err)
	}
	return content, nil
}

func (f *sftpFiles) WriteFile(remotePath string, content []byte, perm os.FileMode) error {
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		// MkdirAll is a no-op for directories that already exist.
		if err := f.client.MkdirAll(dir); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	file, err := f.client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", remotePath, err)
	}

	if _, err := file.Write(content); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", remotePath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", remotePath, err)
	}

	return f.client.Chmod(remotePath, perm)
}

func (f *sftpFiles) Remove(remotePath string) error {
	return f.client.Remove(remotePath)
}
