package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MasterColumns is the canonical master table schema, fixed order.
var MasterColumns = []string{
	"id", "filename", "model", "viewtype", "sequence",
	"width", "height", "filesize", "sha256", "processed_at",
	"source", "uid", "sha256_manifest_path", "notes",
}

// Record is one row of the master metadata table. The sha256 digest is the
// table's deduplication key; id is derived and rebuildable.
type Record struct {
	ID           string
	Filename     string
	Model        string
	ViewType     string
	Sequence     string
	Width        int
	Height       int
	Filesize     int64
	SHA256       string
	ProcessedAt  string
	Source       string
	UID          string
	ManifestPath string
	Notes        string
}

func (r Record) row() []string {
	return []string{
		r.ID, r.Filename, r.Model, r.ViewType, r.Sequence,
		strconv.Itoa(r.Width), strconv.Itoa(r.Height), strconv.FormatInt(r.Filesize, 10),
		r.SHA256, r.ProcessedAt, r.Source, r.UID, r.ManifestPath, r.Notes,
	}
}

func atoiSafe(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func recordFromRow(idx map[string]int, row []string) Record {
	get := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return Record{
		ID:           get("id"),
		Filename:     get("filename"),
		Model:        get("model"),
		ViewType:     get("viewtype"),
		Sequence:     get("sequence"),
		Width:        atoiSafe(get("width")),
		Height:       atoiSafe(get("height")),
		Filesize:     int64(atoiSafe(get("filesize"))),
		SHA256:       get("sha256"),
		ProcessedAt:  get("processed_at"),
		Source:       get("source"),
		UID:          get("uid"),
		ManifestPath: get("sha256_manifest_path"),
		Notes:        get("notes"),
	}
}

func quarantinePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".corrupt.bak"
}

// LoadTable reads the persisted master table. A missing or empty file yields
// an empty table. An unparseable file is preserved under a .corrupt.bak name
// and the load continues with an empty table, so a corrupt master never
// blocks ingesting new data.
func LoadTable(path string) ([]Record, error) {
	header, rows, err := LoadRawTable(path)
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			bkp := quarantinePath(path)
			if renameErr := os.Rename(path, bkp); renameErr != nil {
				return nil, fmt.Errorf("quarantine corrupt table: %w", renameErr)
			}
			return nil, nil
		}
		return nil, err
	}
	if len(header) == 0 {
		return nil, nil
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, recordFromRow(idx, row))
	}
	return out, nil
}

// LoadRawTable reads a CSV table preserving its header and cell values as-is.
// Migration uses this to reach legacy columns that the canonical Record does
// not model. Missing file yields an empty header and no rows.
func LoadRawTable(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = -1
	all, err := rd.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[0], all[1:], nil
}

// MergeRecords concatenates existing and incoming rows and de-duplicates by
// digest, keeping the first occurrence. Existing rows come first, so stored
// provenance wins on conflict. Rows without a digest are always kept.
func MergeRecords(existing, incoming []Record) []Record {
	out := make([]Record, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing))
	for _, r := range append(append([]Record{}, existing...), incoming...) {
		if r.SHA256 != "" {
			if _, ok := seen[r.SHA256]; ok {
				continue
			}
			seen[r.SHA256] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// sequenceKey orders sequences numerically; unparseable values sort last.
func sequenceKey(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 1 << 30
	}
	return n
}

// SortRecords orders the table by (model, viewtype, sequence, filename),
// stable, sequence compared numerically. Stable ordering keeps diffs of the
// persisted file minimal across unrelated runs.
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		if a.ViewType != b.ViewType {
			return a.ViewType < b.ViewType
		}
		sa, sb := sequenceKey(a.Sequence), sequenceKey(b.Sequence)
		if sa != sb {
			return sa < sb
		}
		return a.Filename < b.Filename
	})
}

// PersistTable serializes the full table in canonical column order and
// replaces the target atomically. Every persist is a full rewrite.
func PersistTable(path string, recs []Record) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(MasterColumns); err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.Write(r.row()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// DigestSet collects the non-empty digests present in the table.
func DigestSet(recs []Record) map[string]struct{} {
	out := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if r.SHA256 != "" {
			out[r.SHA256] = struct{}{}
		}
	}
	return out
}

var digitsRe = regexp.MustCompile(`\d+`)

// NormalizeSequence maps legacy sequence renderings ("3", "3.0", "03") to the
// canonical zero-padded two-character form. Values without digits become "00".
func NormalizeSequence(s string) string {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".0")
	m := digitsRe.FindString(s)
	if m == "" {
		return "00"
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return "00"
	}
	return fmt.Sprintf("%02d", n)
}
