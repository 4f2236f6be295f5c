package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeCSV(t *testing.T, path string, lines ...string) {
	t.Helper()
	writeFile(t, path, []byte(strings.Join(lines, "\n")+"\n"))
}

func TestMigrateToCanonical(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master_metadata.csv")
	sha := testDigest('a')
	writeCSV(t, master,
		"file_name,sha256,style_code,acquired_via,notes",
		"BA2037-089_front_01.jpg,"+sha+",BA2037-089,estate sale,prior note",
		"odd-name.jpg,"+testDigest('b')+",,,",
	)

	stats, err := MigrateToCanonical(MustSchema(), MigrateConfig{MasterPath: master})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rows != 2 {
		t.Fatalf("rows=%d, want 2", stats.Rows)
	}
	if stats.BackupPath == "" {
		t.Fatalf("expected a backup of the legacy table")
	}
	if _, err := os.Stat(filepath.Join(tmp, "master_metadata.pre_migrate.bak.csv")); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	out, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	var canon, odd *Record
	for i := range out {
		switch out[i].SHA256 {
		case sha:
			canon = &out[i]
		case testDigest('b'):
			odd = &out[i]
		}
	}
	if canon == nil {
		t.Fatalf("canonical row missing")
	}
	if canon.Model != "BA2037-089" || canon.ViewType != "front" || canon.Sequence != "01" {
		t.Fatalf("filename not re-parsed: %+v", canon)
	}
	if canon.ID != "BA2037-089_front_01_"+sha[:8] {
		t.Fatalf("unexpected id: %q", canon.ID)
	}
	if canon.Source != "legacy_migration" {
		t.Fatalf("unexpected source: %q", canon.Source)
	}
	// Prior notes survive; unmapped legacy columns overflow as key=value.
	if !strings.Contains(canon.Notes, "prior note") {
		t.Fatalf("prior notes lost: %q", canon.Notes)
	}
	if !strings.Contains(canon.Notes, "style_code=BA2037-089") || !strings.Contains(canon.Notes, "acquired_via=estate sale") {
		t.Fatalf("legacy columns not folded into notes: %q", canon.Notes)
	}

	if odd == nil {
		t.Fatalf("unparseable row missing")
	}
	if odd.Model != "" || odd.ViewType != "unknown" {
		t.Fatalf("unexpected fallback fields: %+v", odd)
	}
	if odd.ID != "odd-name.jpg" {
		t.Fatalf("expected filename fallback id, got %q", odd.ID)
	}
}

func TestMigrateComputesMissingDigestFromDisk(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master_metadata.csv")
	photoRoot := filepath.Join(tmp, "models")

	content := []byte("photo bytes on disk")
	writeFile(t, filepath.Join(photoRoot, "BA2037-089", "photos", "BA2037-089_front_01.jpg"), content)

	writeCSV(t, master,
		"filename,sha256",
		"BA2037-089_front_01.jpg,",
	)

	stats, err := MigrateToCanonical(MustSchema(), MigrateConfig{MasterPath: master, PhotoRoot: photoRoot})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Hashed != 1 {
		t.Fatalf("hashed=%d, want 1", stats.Hashed)
	}

	out, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 row")
	}
	want, err := HashFile(filepath.Join(photoRoot, "BA2037-089", "photos", "BA2037-089_front_01.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].SHA256 != want {
		t.Fatalf("digest not computed from disk: %q", out[0].SHA256)
	}
	if out[0].Filesize != int64(len(content)) {
		t.Fatalf("filesize not filled from disk: %d", out[0].Filesize)
	}
}

func TestMigrateDedupsByDigest(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master_metadata.csv")
	sha := testDigest('a')
	writeCSV(t, master,
		"filename,sha256",
		"BA2037-089_front_01.jpg,"+sha,
		"BA2037-089_front_02.jpg,"+sha,
	)

	stats, err := MigrateToCanonical(MustSchema(), MigrateConfig{MasterPath: master})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rows != 1 {
		t.Fatalf("rows=%d, want 1", stats.Rows)
	}
	out, _ := LoadTable(master)
	if len(out) != 1 || out[0].Filename != "BA2037-089_front_01.jpg" {
		t.Fatalf("first occurrence must win: %+v", out)
	}
}

func TestMigrateMissingTableIsFatal(t *testing.T) {
	if _, err := MigrateToCanonical(MustSchema(), MigrateConfig{
		MasterPath: filepath.Join(t.TempDir(), "absent.csv"),
	}); err == nil {
		t.Fatalf("expected error for missing table")
	}
}
