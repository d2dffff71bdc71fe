package metadir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddExtractedFileBounds(t *testing.T) {
	dir := t.TempDir()
	md := New(dir, "root", filepath.Join(dir, "root.bin"), 100)

	if _, err := md.AddExtractedFile(90, 20); err == nil {
		t.Fatalf("expected out-of-bounds error")
	}
	child, err := md.AddExtractedFile(10, 20)
	if err != nil {
		t.Fatalf("AddExtractedFile: %v", err)
	}
	if child.Size != 20 {
		t.Fatalf("child size = %d, want 20", child.Size)
	}
	if want := "root/extracted-00000000000a-000000000014"; child.MDPath != want {
		t.Fatalf("child md_path = %q, want %q", child.MDPath, want)
	}
}

func TestAddUnpackedFileRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	md := New(dir, "root", filepath.Join(dir, "root.bin"), 100)

	cases := []string{"../etc/passwd", "/etc/passwd", "..", ""}
	for _, rel := range cases {
		if _, err := md.AddUnpackedFile(rel, "/dev/null", 0); err == nil {
			t.Fatalf("path %q should have been rejected", rel)
		}
	}

	child, err := md.AddUnpackedFile("dir/file.txt", filepath.Join(dir, "file.txt"), 5)
	if err != nil {
		t.Fatalf("AddUnpackedFile: %v", err)
	}
	if want := "root/dir/file.txt"; child.MDPath != want {
		t.Fatalf("child md_path = %q, want %q", child.MDPath, want)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "root.bin")
	if err := os.WriteFile(target, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	md := New(dir, "root", target, 11)
	if _, err := md.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	md.Info().AddLabel("text")
	md.Info().UnpackParser = "stub"
	if err := md.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := New(dir, "root", target, 11)
	if _, err := reopened.Open(); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.Info().HasLabel("text") {
		t.Fatalf("label not restored from disk")
	}
	if reopened.Info().UnpackParser != "stub" {
		t.Fatalf("unpack_parser not restored, got %q", reopened.Info().UnpackParser)
	}
}

func TestOpenDoesNotOverwriteInMemoryInfo(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "root.bin")
	if err := os.WriteFile(target, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	md := New(dir, "root", target, 11)
	md.Info().AddLabel("in-memory-only")
	if _, err := md.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !md.Info().HasLabel("in-memory-only") {
		t.Fatalf("Open clobbered in-memory info before any disk copy existed")
	}
	md.Close()
}

// TestColdStartReconstructsFromPersistedInfo exercises the path a
// resumed process takes: a fresh MetaDirectory with no known
// file_path/size, reconstructed purely from a previously persisted
// info.gob, must recover enough to be opened again.
func TestColdStartReconstructsFromPersistedInfo(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "child.bin")
	require.NoError(t, os.WriteFile(target, []byte("0123456789"), 0o644))

	original := New(dir, "root/child", target, 10)
	_, err := original.Open()
	require.NoError(t, err)
	original.Info().AddLabel("gzip")
	original.Info().UnpackParser = "gzip"
	require.NoError(t, original.Close())

	cold := New(dir, "root/child", "", 0)
	require.NoError(t, cold.ReadInfo())

	require.Equal(t, target, cold.FilePath)
	require.Equal(t, int64(10), cold.Size)
	require.True(t, cold.Info().HasLabel("gzip"))
	require.Equal(t, "gzip", cold.Info().UnpackParser)

	reader, err := cold.Open()
	require.NoError(t, err)
	defer cold.Close()

	buf := make([]byte, 10)
	n, err := reader.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(buf[:n]))
}
