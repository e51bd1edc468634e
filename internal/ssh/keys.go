package ssh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/ssh"
)

// KeyInfo describes a private key file usable with -i
type KeyInfo struct {
	Path        string // Full path to the key file
	Name        string // Key filename (e.g., "id_ed25519")
	Type        string // Short key type (e.g., "ed25519", "rsa", "ecdsa"), "unknown" when hidden by encryption
	Fingerprint string // SHA256 fingerprint, empty when hidden by encryption
	IsEncrypted bool   // True if key is passphrase-protected
}

// DefaultKeyDir returns ~/.ssh
func DefaultKeyDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".ssh"), nil
}

// DiscoverKeys scans dir for private keys.
// Returns keys sorted by preference: ed25519 first, then rsa, then others
func DiscoverKeys(dir string) ([]KeyInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var keys []KeyInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, "id_") && !strings.HasSuffix(name, ".pem") {
			continue
		}
		if strings.HasSuffix(name, ".pub") || strings.HasSuffix(name, "-cert.pub") {
			continue
		}

		info, err := ValidateKey(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		keys = append(keys, *info)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		return keyTypePriority(keys[i].Type) < keyTypePriority(keys[j].Type)
	})

	return keys, nil
}

// keyTypePriority returns sort priority for key types (lower is better)
func keyTypePriority(keyType string) int {
	switch keyType {
	case "ed25519":
		return 1
	case "rsa":
		return 2
	case "ecdsa":
		return 3
	default:
		return 4
	}
}

// ValidateKey parses a private key file and returns its info.
// Passphrase-protected keys are valid but reported as encrypted: ssh would
// prompt for the passphrase, which a detached master cannot answer.
func ValidateKey(path string) (*KeyInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	info := &KeyInfo{
		Path: path,
		Name: filepath.Base(path),
		Type: "unknown",
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return nil, fmt.Errorf("invalid SSH key: %w", err)
		}
		info.IsEncrypted = true
		if missing.PublicKey != nil {
			info.Type = shortKeyType(missing.PublicKey.Type())
			info.Fingerprint = ssh.FingerprintSHA256(missing.PublicKey)
		}
		return info, nil
	}

	info.Type = shortKeyType(signer.PublicKey().Type())
	info.Fingerprint = ssh.FingerprintSHA256(signer.PublicKey())
	return info, nil
}

// shortKeyType maps wire key types to the names used by ssh-keygen -t
func shortKeyType(wireType string) string {
	switch {
	case wireType == ssh.KeyAlgoED25519 || wireType == ssh.KeyAlgoSKED25519:
		return "ed25519"
	case wireType == ssh.KeyAlgoRSA:
		return "rsa"
	case strings.HasPrefix(wireType, "ecdsa-") || wireType == ssh.KeyAlgoSKECDSA256:
		return "ecdsa"
	case wireType == ssh.KeyAlgoDSA:
		return "dsa"
	default:
		return wireType
	}
}
