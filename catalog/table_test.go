package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadTableMissingFile(t *testing.T) {
	recs, err := LoadTable(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty table")
	}
}

func TestLoadTableQuarantinesCorruptFile(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master_metadata.csv")
	corrupt := "id,filename\nabc,\"unterminated\nxx"
	if err := os.WriteFile(master, []byte(corrupt), 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected empty table after quarantine")
	}

	bkp := filepath.Join(tmp, "master_metadata.corrupt.bak")
	b, err := os.ReadFile(bkp)
	if err != nil {
		t.Fatalf("corrupt file must be preserved: %v", err)
	}
	if string(b) != corrupt {
		t.Fatalf("quarantined content altered")
	}
	if _, err := os.Stat(master); err == nil {
		t.Fatalf("original corrupt file should have been moved")
	}
}

func TestMergeRecordsDedupByDigestKeepFirst(t *testing.T) {
	existing := []Record{
		{Filename: "old.jpg", SHA256: testDigest('a'), Source: "prior_run"},
	}
	incoming := []Record{
		{Filename: "new-copy.jpg", SHA256: testDigest('a'), Source: "this_run"},
		{Filename: "new.jpg", SHA256: testDigest('b')},
		{Filename: "no-digest-1.jpg"},
		{Filename: "no-digest-2.jpg"},
	}

	merged := MergeRecords(existing, incoming)
	if len(merged) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(merged))
	}
	if merged[0].Filename != "old.jpg" || merged[0].Source != "prior_run" {
		t.Fatalf("existing row must win on digest conflict: %+v", merged[0])
	}
	for _, r := range merged {
		if r.Filename == "new-copy.jpg" {
			t.Fatalf("duplicate digest row survived merge")
		}
	}
}

func TestSortRecordsNumericSequence(t *testing.T) {
	recs := []Record{
		{Model: "BA0001-001", ViewType: "front", Sequence: "10", Filename: "c"},
		{Model: "BA0001-001", ViewType: "front", Sequence: "02", Filename: "b"},
		{Model: "BA0001-001", ViewType: "back", Sequence: "01", Filename: "a"},
		{Model: "AA0001-001", ViewType: "front", Sequence: "01", Filename: "z"},
	}
	SortRecords(recs)

	want := []string{"z", "a", "b", "c"}
	for i, fn := range want {
		if recs[i].Filename != fn {
			t.Fatalf("position %d: got %q, want %q", i, recs[i].Filename, fn)
		}
	}
}

func TestPersistAndReloadRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master.csv")

	in := []Record{
		{
			ID: "BA0001-001_front_01_" + testDigest('a')[:8], Filename: "BA0001-001_front_01.jpg",
			Model: "BA0001-001", ViewType: "front", Sequence: "01",
			Width: 800, Height: 600, Filesize: 1234,
			SHA256: testDigest('a'), ProcessedAt: "2026-08-26T00:00:00Z",
			Source: "local_ingest", Notes: "line1\nline2",
		},
	}
	if err := PersistTable(master, in); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(master)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(b), strings.Join(MasterColumns, ",")+"\n") {
		t.Fatalf("canonical header missing: %q", string(b)[:80])
	}

	out, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestNormalizeSequence(t *testing.T) {
	cases := map[string]string{
		"3":    "03",
		"3.0":  "03",
		"03":   "03",
		" 12 ": "12",
		"":     "00",
		"n/a":  "00",
	}
	for in, want := range cases {
		if got := NormalizeSequence(in); got != want {
			t.Fatalf("NormalizeSequence(%q) = %q, want %q", in, got, want)
		}
	}
}
