package ssh

import (
	"fmt"
	"os"

	"github.com/yoanbernabeu/sshsession/internal/constants"
	"github.com/yoanbernabeu/sshsession/internal/security"
)

// askpassScript returns a POSIX sh program that prints password on stdout.
// The password is single-quoted, so quotes and shell metacharacters in it
// are emitted literally.
func askpassScript(password string) string {
	return "#!/bin/sh\nprintf '%s\\n' " + security.ShellEscape(password) + "\n"
}

// writeAskpass creates a single-use SSH_ASKPASS helper in dir and returns
// its path. The caller must remove it with removeAskpass.
func writeAskpass(dir, password string) (string, error) {
	if err := security.ValidateAskpassPassword(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafePassword, err)
	}

	f, err := os.CreateTemp(dir, constants.AskpassPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create askpass file: %w", err)
	}
	path := f.Name()

	fail := func(err error) (string, error) {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return "", fmt.Errorf("%w (and failed to remove %s: %v)", err, path, rmErr)
		}
		return "", err
	}

	// SECURITY: restrict to owner read+execute before the secret is written.
	// Writes through the already open descriptor are still allowed.
	if err := f.Chmod(constants.AskpassMode); err != nil {
		return fail(fmt.Errorf("failed to restrict askpass file: %w", err))
	}
	if _, err := f.WriteString(askpassScript(password)); err != nil {
		return fail(fmt.Errorf("failed to write askpass file: %w", err))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("failed to close askpass file: %w", err))
	}

	return path, nil
}

// removeAskpass deletes the helper. A helper that is already gone is fine;
// any other failure leaves a plaintext secret on disk and is reported.
func removeAskpass(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove askpass file %s: %w", path, err)
	}
	return nil
}

func askpassEnv(path string) []string {
	return []string{
		"SSH_ASKPASS=" + path,
		// OpenSSH >= 8.4 uses the helper even when a terminal is around
		"SSH_ASKPASS_REQUIRE=force",
		"DISPLAY=" + constants.AskpassDisplay,
	}
}
