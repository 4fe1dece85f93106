package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	inside := filepath.Join(dir, "scene.csv")
	if err := os.WriteFile(inside, []byte("1,2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file inside", inside, false},
		{"not yet created inside", filepath.Join(dir, "new.csv"), false},
		{"nested inside", filepath.Join(dir, "sub", "scene.csv"), false},
		{"dot-dot escape", filepath.Join(dir, "..", "scene.csv"), true},
		{"sneaky dot-dot", filepath.Join(dir, "sub", "..", "..", "etc", "passwd"), true},
		{"absolute outside", "/etc/passwd", true},
		{"the directory itself", dir, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tc.path, dir)
			if (err != nil) != tc.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q, %q) = %v, wantErr %v", tc.path, dir, err, tc.wantErr)
			}
		})
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink setup not portable to windows CI")
	}
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if err := ValidatePathWithinDirectory(filepath.Join(link, "scene.csv"), dir); err == nil {
		t.Error("symlinked path escaping the directory was accepted")
	}
}
