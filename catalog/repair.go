package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RenameAction is one row of the filename-repair log.
type RenameAction struct {
	Src    string
	Dst    string
	Action string // "RENAME" or "SKIP:no-model"
}

// FilenameRepairer normalizes non-conforming image filenames to the
// canonical {MODEL}_{view}_{NN}.{ext} schema. The model code may appear
// anywhere in the path, the viewtype is guessed from hint substrings, and
// the sequence is the next free NN in the destination folder.
type FilenameRepairer struct {
	Schema *Schema
	DryRun bool
}

// Run walks root and renames (or, in dry-run, plans renames for) every
// allow-listed image whose name does not already match the schema.
func (fr *FilenameRepairer) Run(root string) ([]RenameAction, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("root not found: %s", root)
	}
	schema := fr.Schema
	if schema == nil {
		schema = MustSchema()
	}

	seqCache := make(map[string]int)
	var actions []RenameAction

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !schema.AllowedExt(d.Name()) {
			return nil
		}
		if _, ok := schema.Parse(d.Name()); ok {
			// already compliant
			return nil
		}

		model := schema.FindModel(filepath.ToSlash(p))
		if model == "" {
			actions = append(actions, RenameAction{Src: p, Action: "SKIP:no-model"})
			return nil
		}

		stem := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		view := schema.GuessView(stem)
		dir := filepath.Dir(p)

		key := model + "_" + view + "@" + dir
		seq := schema.NextSequence(dir, model, view)
		if cached := seqCache[key]; cached > seq {
			seq = cached
		}

		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
		target := filepath.Join(dir, fmt.Sprintf("%s_%s_%02d.%s", model, view, seq, ext))
		for {
			if _, err := os.Stat(target); err != nil {
				break
			}
			seq++
			target = filepath.Join(dir, fmt.Sprintf("%s_%s_%02d.%s", model, view, seq, ext))
		}
		seqCache[key] = seq + 1

		if p == target {
			return nil
		}
		actions = append(actions, RenameAction{Src: p, Dst: target, Action: "RENAME"})
		if !fr.DryRun {
			if err := os.Rename(p, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// PlannedRenames counts the RENAME actions in a repair log.
func PlannedRenames(actions []RenameAction) int {
	n := 0
	for _, a := range actions {
		if strings.HasPrefix(a.Action, "RENAME") {
			n++
		}
	}
	return n
}

// WriteRenameLog records the repair actions as a TSV file.
func WriteRenameLog(path string, actions []RenameAction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'
	if err := w.Write([]string{"src", "dst", "action"}); err != nil {
		return err
	}
	for _, a := range actions {
		if err := w.Write([]string{a.Src, a.Dst, a.Action}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// RepairTableFromFilenames fills empty or unknown model/viewtype/sequence
// fields by loose-searching the canonical pattern inside the filename column,
// which tolerates legacy prefixes and embedded paths. Only missing fields are
// touched; populated ones are preserved. Returns the number of rows with at
// least one repaired field.
func RepairTableFromFilenames(schema *Schema, masterPath string) (int, error) {
	if schema == nil {
		schema = MustSchema()
	}
	recs, err := LoadTable(masterPath)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	repaired := 0
	for i := range recs {
		parsed, ok := schema.Search(recs[i].Filename)
		if !ok {
			continue
		}
		changed := false
		if recs[i].Model == "" {
			recs[i].Model = parsed.Model
			changed = true
		}
		if recs[i].ViewType == "" || recs[i].ViewType == "unknown" {
			recs[i].ViewType = parsed.ViewType
			changed = true
		}
		if n, err := strconv.Atoi(strings.TrimSpace(recs[i].Sequence)); err != nil || n == 0 {
			recs[i].Sequence = fmt.Sprintf("%02d", parsed.Sequence)
			changed = true
		}
		if changed {
			repaired++
		}
	}

	if err := PersistTable(masterPath, recs); err != nil {
		return 0, err
	}
	return repaired, nil
}

// NormalizeTable forces every sequence to the canonical zero-padded
// two-character form and rebuilds id as {model}_{viewtype}_{sequence}_{sha8}
// wherever model and viewtype are known. The table is re-sorted and
// atomically rewritten. Returns the row count.
func NormalizeTable(masterPath string) (int, error) {
	recs, err := LoadTable(masterPath)
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}

	for i := range recs {
		recs[i].Sequence = NormalizeSequence(recs[i].Sequence)
		if recs[i].Model != "" && recs[i].ViewType != "" {
			recs[i].ID = fmt.Sprintf("%s_%s_%s_%s",
				recs[i].Model, recs[i].ViewType, recs[i].Sequence, DigestPrefix(recs[i].SHA256))
		}
	}
	SortRecords(recs)

	if err := PersistTable(masterPath, recs); err != nil {
		return 0, err
	}
	return len(recs), nil
}

// CleanTable drops rows without a filename, de-duplicates by
// (filename, sha256), re-sorts and atomically rewrites the table.
// Returns the surviving row count.
func CleanTable(masterPath string) (int, error) {
	recs, err := LoadTable(masterPath)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(recs))
	out := recs[:0]
	for _, r := range recs {
		if r.Filename == "" {
			continue
		}
		key := r.Filename + "\x00" + r.SHA256
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	SortRecords(out)

	if err := PersistTable(masterPath, out); err != nil {
		return 0, err
	}
	return len(out), nil
}
