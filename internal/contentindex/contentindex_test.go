package contentindex

import (
	"strings"
	"testing"
)

func TestCheckAndRecordDetectsDuplicate(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	dup, canonical, err := idx.CheckAndRecord(strings.NewReader("hello world"), "root/a")
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if dup {
		t.Fatalf("first sighting should not be a duplicate")
	}
	if canonical != "root/a" {
		t.Fatalf("canonical = %q, want root/a", canonical)
	}

	dup, canonical, err = idx.CheckAndRecord(strings.NewReader("hello world"), "root/b")
	if err != nil {
		t.Fatalf("CheckAndRecord: %v", err)
	}
	if !dup {
		t.Fatalf("second identical sighting should be a duplicate")
	}
	if canonical != "root/a" {
		t.Fatalf("canonical = %q, want root/a", canonical)
	}
}

func TestCheckAndRecordDistinctContent(t *testing.T) {
	idx, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	dup1, _, _ := idx.CheckAndRecord(strings.NewReader("aaaa"), "root/a")
	dup2, _, _ := idx.CheckAndRecord(strings.NewReader("bbbb"), "root/b")
	if dup1 || dup2 {
		t.Fatalf("distinct content should never be flagged as duplicate")
	}
}
