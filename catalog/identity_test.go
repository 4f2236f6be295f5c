package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestHashFile(t *testing.T) {
	tmp := t.TempDir()
	p1 := filepath.Join(tmp, "a.bin")
	p2 := filepath.Join(tmp, "b.bin")
	content := []byte("identical bytes")
	if err := os.WriteFile(p1, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p2, content, 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := HashFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashFile(p2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("identical content must hash identically: %s vs %s", h1, h2)
	}

	sum := sha256.Sum256(content)
	if want := hex.EncodeToString(sum[:]); h1 != want {
		t.Fatalf("got %s, want %s", h1, want)
	}

	if _, err := HashFile(filepath.Join(tmp, "missing.bin")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestRecordID(t *testing.T) {
	digest := "deadbeefcafe0000000000000000000000000000000000000000000000000000"
	if got := RecordID("BA2037-089", "front", 3, digest); got != "BA2037-089_front_03_deadbeef" {
		t.Fatalf("unexpected id: %q", got)
	}
	if got := RecordID("BA2037-089", "front", 3, ""); got != "BA2037-089_front_03_00000000" {
		t.Fatalf("unexpected id for empty digest: %q", got)
	}
}

func TestFallbackID(t *testing.T) {
	if got := FallbackID("uid-1", "f.jpg", "deadbeef00"); got != "uid-1" {
		t.Fatalf("uid should win: %q", got)
	}
	if got := FallbackID("", "f.jpg", "deadbeef00"); got != "f.jpg" {
		t.Fatalf("filename next: %q", got)
	}
	if got := FallbackID("", "", "deadbeef00"); got != "deadbeef" {
		t.Fatalf("digest prefix last: %q", got)
	}
}
