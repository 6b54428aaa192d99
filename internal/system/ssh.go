package system

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SSHKeyPaths returns the private key and authorized_keys paths under home
func SSHKeyPaths(home string) (key string, authorized string) {
	dir := filepath.Join(home, ".ssh")
	return filepath.Join(dir, "id_rsa"), filepath.Join(dir, "authorized_keys")
}

// HasSSHKey reports whether home already has a key pair authorized for itself
func HasSSHKey(home string) bool {
	key, authorized := SSHKeyPaths(home)
	pub, err := os.ReadFile(key + ".pub")
	if err != nil {
		return false
	}
	auth, err := os.ReadFile(authorized)
	if err != nil {
		return false
	}
	return bytes.Contains(auth, bytes.TrimSpace(pub))
}

// EnsureSSHKey generates a passphrase-less RSA key for user when none exists
// and authorizes it for passwordless localhost logins.
func EnsureSSHKey(ctx context.Context, r Runner, user, group, home string) error {
	key, authorized := SSHKeyPaths(home)

	if _, err := os.Stat(key); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(key), 0700); err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Dir(key), err)
		}
		keygen := Command{Name: "ssh-keygen", Args: []string{"-t", "rsa", "-P", "", "-f", key}}
		if _, err := r.Run(ctx, keygen); err != nil {
			return fmt.Errorf("ssh-keygen failed: %w", err)
		}
	}

	pub, err := os.ReadFile(key + ".pub")
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	pub = bytes.TrimSpace(pub)

	existing, err := os.ReadFile(authorized)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", authorized, err)
	}

	if !bytes.Contains(existing, pub) {
		f, err := os.OpenFile(authorized, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", authorized, err)
		}
		if len(existing) > 0 && !bytes.HasSuffix(existing, []byte("\n")) {
			pub = append([]byte("\n"), pub...)
		}
		_, err = f.Write(append(pub, '\n'))
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", authorized, err)
		}
	}

	return Chown(ctx, r, filepath.Dir(key), user, group)
}
