package ssh

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAskpass(t *testing.T) {
	passwords := []string{
		"hunter2",
		`it's "quoted"`,
		"$(id) `id` ${HOME} ; | & > <",
		`back\slash%s%%`,
		"",
	}

	sh, shErr := exec.LookPath("sh")

	for _, pw := range passwords {
		t.Run(pw, func(t *testing.T) {
			dir := t.TempDir()
			path, err := writeAskpass(dir, pw)
			if err != nil {
				t.Fatalf("writeAskpass() unexpected error: %v", err)
			}
			defer removeAskpass(path)

			if filepath.Dir(path) != dir {
				t.Errorf("helper written outside %s: %s", dir, path)
			}
			if !strings.HasPrefix(filepath.Base(path), "sshsession-askpass-") {
				t.Errorf("unexpected helper name %s", path)
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("stat helper: %v", err)
			}
			if info.Mode().Perm() != 0500 {
				t.Errorf("mode = %o, want 0500", info.Mode().Perm())
			}

			if shErr != nil {
				return
			}
			out, err := exec.Command(sh, path).Output()
			if err != nil {
				t.Fatalf("running helper: %v", err)
			}
			if string(out) != pw+"\n" {
				t.Errorf("helper printed %q, want %q", out, pw+"\n")
			}
		})
	}
}

func TestWriteAskpass_UnsafePassword(t *testing.T) {
	dir := t.TempDir()
	for _, pw := range []string{"a\nb", "a\rb", "a\x00b"} {
		if _, err := writeAskpass(dir, pw); !errors.Is(err, ErrUnsafePassword) {
			t.Errorf("writeAskpass(%q) = %v, want ErrUnsafePassword", pw, err)
		}
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("rejected passwords must not touch disk: %v", entries)
	}
}

func TestRemoveAskpass(t *testing.T) {
	path, err := writeAskpass(t.TempDir(), "pw")
	if err != nil {
		t.Fatalf("writeAskpass() unexpected error: %v", err)
	}
	if err := removeAskpass(path); err != nil {
		t.Errorf("removeAskpass() = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("helper still present: %v", err)
	}
	if err := removeAskpass(path); err != nil {
		t.Errorf("removing a missing helper must succeed, got %v", err)
	}
}

func TestAskpassEnv(t *testing.T) {
	env := askpassEnv("/tmp/helper")
	want := map[string]bool{
		"SSH_ASKPASS=/tmp/helper":   false,
		"SSH_ASKPASS_REQUIRE=force": false,
	}
	hasDisplay := false
	for _, e := range env {
		if _, ok := want[e]; ok {
			want[e] = true
		}
		if strings.HasPrefix(e, "DISPLAY=") && len(e) > len("DISPLAY=") {
			hasDisplay = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Errorf("missing %s in %v", k, env)
		}
	}
	if !hasDisplay {
		t.Errorf("missing DISPLAY in %v", env)
	}
}
