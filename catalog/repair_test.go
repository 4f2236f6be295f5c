package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFilenameRepairerRenames(t *testing.T) {
	tmp := t.TempDir()
	bag := filepath.Join(tmp, "BA2037-089", "photos")
	writeFile(t, filepath.Join(bag, "IMG_4021_front.jpg"), []byte("a"))
	writeFile(t, filepath.Join(bag, "scan of care label.png"), []byte("b"))
	writeFile(t, filepath.Join(tmp, "loose", "no-code-here.jpg"), []byte("c"))

	fr := &FilenameRepairer{Schema: MustSchema()}
	actions, err := fr.Run(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if got := PlannedRenames(actions); got != 2 {
		t.Fatalf("planned_renames=%d, want 2", got)
	}

	if _, err := os.Stat(filepath.Join(bag, "BA2037-089_front_01.jpg")); err != nil {
		t.Fatalf("front rename missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(bag, "BA2037-089_tag_01.png")); err != nil {
		t.Fatalf("tag rename missing: %v", err)
	}

	var skipped int
	for _, a := range actions {
		if a.Action == "SKIP:no-model" {
			skipped++
		}
	}
	if skipped != 1 {
		t.Fatalf("expected 1 no-model skip, got %d", skipped)
	}

	// Compliant names are left alone on a second pass.
	actions, err = fr.Run(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if got := PlannedRenames(actions); got != 0 {
		t.Fatalf("second pass planned %d renames", got)
	}
}

func TestFilenameRepairerSequencesStack(t *testing.T) {
	tmp := t.TempDir()
	bag := filepath.Join(tmp, "BA2037-089", "photos")
	writeFile(t, filepath.Join(bag, "BA2037-089_front_01.jpg"), []byte("existing"))
	writeFile(t, filepath.Join(bag, "a_front_dup.jpg"), []byte("x"))
	writeFile(t, filepath.Join(bag, "b_front_dup.jpg"), []byte("y"))

	fr := &FilenameRepairer{Schema: MustSchema()}
	if _, err := fr.Run(tmp); err != nil {
		t.Fatal(err)
	}

	// Duplicates slot in after the existing _01.
	for _, want := range []string{"BA2037-089_front_01.jpg", "BA2037-089_front_02.jpg", "BA2037-089_front_03.jpg"} {
		if _, err := os.Stat(filepath.Join(bag, want)); err != nil {
			t.Fatalf("missing %s: %v", want, err)
		}
	}
}

func TestFilenameRepairerDryRun(t *testing.T) {
	tmp := t.TempDir()
	bag := filepath.Join(tmp, "BA2037-089", "photos")
	src := filepath.Join(bag, "IMG_back.jpg")
	writeFile(t, src, []byte("a"))

	fr := &FilenameRepairer{Schema: MustSchema(), DryRun: true}
	actions, err := fr.Run(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if got := PlannedRenames(actions); got != 1 {
		t.Fatalf("planned_renames=%d, want 1", got)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("dry run moved the file: %v", err)
	}
}

func TestWriteRenameLog(t *testing.T) {
	tmp := t.TempDir()
	logPath := filepath.Join(tmp, "logs", "fix_filenames.tsv")
	err := WriteRenameLog(logPath, []RenameAction{
		{Src: "a.jpg", Dst: "BA0001-001_front_01.jpg", Action: "RENAME"},
		{Src: "b.jpg", Action: "SKIP:no-model"},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) != 3 || lines[0] != "src\tdst\taction" {
		t.Fatalf("unexpected log: %q", string(b))
	}
}

func TestRepairTableFromFilenames(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master.csv")
	recs := []Record{
		{Filename: "BA2037-089_01_BA2037-089_front_01.jpeg", ViewType: "unknown", Sequence: "0", SHA256: testDigest('a')},
		{Filename: "unrelated.jpg", Model: "KEEP", ViewType: "front", Sequence: "05", SHA256: testDigest('b')},
	}
	if err := PersistTable(master, recs); err != nil {
		t.Fatal(err)
	}

	repaired, err := RepairTableFromFilenames(MustSchema(), master)
	if err != nil {
		t.Fatal(err)
	}
	if repaired != 1 {
		t.Fatalf("repaired=%d, want 1", repaired)
	}

	out, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	var fixed, kept *Record
	for i := range out {
		switch out[i].SHA256 {
		case testDigest('a'):
			fixed = &out[i]
		case testDigest('b'):
			kept = &out[i]
		}
	}
	if fixed == nil || fixed.Model != "BA2037-089" || fixed.ViewType != "front" || fixed.Sequence != "01" {
		t.Fatalf("row not repaired: %+v", fixed)
	}
	if kept == nil || kept.Model != "KEEP" || kept.Sequence != "05" {
		t.Fatalf("populated row was touched: %+v", kept)
	}
}

func TestNormalizeTableRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master.csv")
	sha := testDigest('a')
	recs := []Record{
		{ID: "stale", Filename: "BA2037-089_front_03.jpg", Model: "BA2037-089", ViewType: "front", Sequence: "3", SHA256: sha},
		{ID: "stale2", Filename: "BA2037-089_back_03.jpg", Model: "BA2037-089", ViewType: "back", Sequence: "3.0", SHA256: testDigest('b')},
		{ID: "orphan", Filename: "orphan.jpg", Sequence: "7"},
	}
	if err := PersistTable(master, recs); err != nil {
		t.Fatal(err)
	}

	if _, err := NormalizeTable(master); err != nil {
		t.Fatal(err)
	}
	out, err := LoadTable(master)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range out {
		switch r.Filename {
		case "BA2037-089_front_03.jpg":
			if r.Sequence != "03" || r.ID != "BA2037-089_front_03_"+sha[:8] {
				t.Fatalf("front row not normalized: %+v", r)
			}
		case "BA2037-089_back_03.jpg":
			if r.Sequence != "03" {
				t.Fatalf("back row not normalized: %+v", r)
			}
		case "orphan.jpg":
			// No model: sequence still normalized, id untouched.
			if r.Sequence != "07" || r.ID != "orphan" {
				t.Fatalf("orphan handled wrong: %+v", r)
			}
		}
	}
}

func TestCleanTable(t *testing.T) {
	tmp := t.TempDir()
	master := filepath.Join(tmp, "master.csv")
	recs := []Record{
		{Filename: "", SHA256: testDigest('a')},
		{Filename: "keep.jpg", SHA256: testDigest('b')},
		{Filename: "keep.jpg", SHA256: testDigest('b')},
		{Filename: "keep.jpg", SHA256: testDigest('c')},
	}
	if err := PersistTable(master, recs); err != nil {
		t.Fatal(err)
	}

	rows, err := CleanTable(master)
	if err != nil {
		t.Fatal(err)
	}
	if rows != 2 {
		t.Fatalf("rows=%d, want 2", rows)
	}
}
