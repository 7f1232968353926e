package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" { t.Fatalf("got %q err=%v", got, err) }
	if got, err := ExpandHome(""); err != nil || got != "" { t.Fatalf("got %q err=%v", got, err) }
	if got, err := ExpandHome("~"); err != nil || got != home { t.Fatalf("got %q err=%v", got, err) }
	exp, err := ExpandHome("~/weights")
	if err != nil { t.Fatalf("err: %v", err) }
	if filepath.Base(exp) != "weights" || filepath.Dir(exp) != home { t.Fatalf("unexpected expanded path: %q", exp) }
}

func TestSafeName(t *testing.T) {
	for _, ok := range []string{"abc.png", "segmented_1_0_0.png", "a..b"} {
		if _, err := SafeName(ok); err != nil { t.Fatalf("%q rejected: %v", ok, err) }
	}
	for _, bad := range []string{"", ".", "..", "../x.png", "a/b", `a\b`, "x\x00"} {
		if _, err := SafeName(bad); !errors.Is(err, ErrUnsafeName) { t.Fatalf("%q accepted", bad) }
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":              "photo.jpg",
		"/etc/passwd":            "passwd",
		`C:\Users\me\photo.png`:  "photo.png",
		"../../secret.png":       "secret.png",
		"":                       "",
		"..":                     "",
		"dir/":                   "dir",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want { t.Fatalf("BaseName(%q)=%q want %q", in, got, want) }
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out.png")
	if err := WriteFileAtomic(p, []byte("one"), 0o644); err != nil { t.Fatalf("write: %v", err) }
	if err := WriteFileAtomic(p, []byte("two"), 0o644); err != nil { t.Fatalf("overwrite: %v", err) }
	b, err := os.ReadFile(p)
	if err != nil || string(b) != "two" { t.Fatalf("content=%q err=%v", b, err) }
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 { t.Fatalf("temp files left behind: %d entries", len(entries)) }
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.png", "b.png"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil { t.Fatal(err) }
	}
	if err := os.Mkdir(filepath.Join(dir, "keep"), 0o755); err != nil { t.Fatal(err) }
	n, err := ClearDir(dir)
	if err != nil || n != 2 { t.Fatalf("n=%d err=%v", n, err) }
	if !PathExists(filepath.Join(dir, "keep")) { t.Fatalf("subdirectory removed") }
	if n, err := ClearDir(filepath.Join(dir, "missing")); err != nil || n != 0 { t.Fatalf("missing dir: n=%d err=%v", n, err) }
	if IsRegularFile(filepath.Join(dir, "keep")) { t.Fatalf("directory reported as regular file") }
}
