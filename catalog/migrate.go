package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MigrateConfig configures a legacy-table migration.
type MigrateConfig struct {
	// MasterPath is the table to migrate in place.
	MasterPath string
	// PhotoRoot is the per-bag layout used to locate files on disk when a
	// legacy row lacks a digest (<PhotoRoot>/<MODEL>/photos/<name>).
	PhotoRoot string
	// LegacyPhotoRoot is the older flat layout (<LegacyPhotoRoot>/<MODEL>/<name>).
	LegacyPhotoRoot string
	// Source is stamped on rows that carry no provenance of their own.
	Source string
}

// MigrateStats summarizes a migration run.
type MigrateStats struct {
	Rows       int
	Hashed     int
	BackupPath string
}

// filename-bearing legacy columns, in preference order.
var filenameKeys = []string{"filename", "file_name"}
var pathKeys = []string{"thumb_path", "path", "image_path", "photo_path"}
var uidKeys = []string{"uid", "uuid"}

func pickFilename(get func(string) string) string {
	for _, k := range filenameKeys {
		if v := get(k); v != "" {
			return filepath.Base(v)
		}
	}
	for _, k := range pathKeys {
		if v := get(k); v != "" {
			return filepath.Base(v)
		}
	}
	for _, k := range uidKeys {
		if v := get(k); v != "" {
			tail := filepath.Base(v)
			if strings.Contains(tail, ".") && strings.Contains(tail, "_") {
				return tail
			}
		}
	}
	return ""
}

func (mc *MigrateConfig) findDiskPath(model, filename string) string {
	if model == "" || filename == "" {
		return ""
	}
	candidates := []string{
		filepath.Join(mc.PhotoRoot, model, "photos", filename),
		filepath.Join(mc.LegacyPhotoRoot, model, filename),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	for _, base := range []string{mc.PhotoRoot, mc.LegacyPhotoRoot} {
		if base == "" {
			continue
		}
		var found string
		_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && d.Name() == filename {
				found = p
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// canonicalColumns as a set, for deciding which legacy columns overflow
// into notes.
var canonicalColumnSet = func() map[string]struct{} {
	out := make(map[string]struct{}, len(MasterColumns))
	for _, c := range MasterColumns {
		out[c] = struct{}{}
	}
	return out
}()

// MigrateToCanonical rewrites a legacy master table into the canonical
// 14-column schema. Model, viewtype and sequence are re-parsed from the
// filename; missing digests are computed from disk when the file can be
// located; every legacy column with no canonical home is folded into notes
// as a key=value line. The prior table is preserved as a backup before the
// atomic rewrite.
func MigrateToCanonical(schema *Schema, cfg MigrateConfig) (MigrateStats, error) {
	stats := MigrateStats{}
	if schema == nil {
		schema = MustSchema()
	}
	if cfg.Source == "" {
		cfg.Source = "legacy_migration"
	}

	header, rows, err := LoadRawTable(cfg.MasterPath)
	if err != nil {
		return stats, err
	}
	if len(header) == 0 {
		return stats, fmt.Errorf("no table found: %s", cfg.MasterPath)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	consumed := make(map[string]struct{})
	for _, k := range filenameKeys {
		consumed[k] = struct{}{}
	}
	for _, k := range pathKeys {
		consumed[k] = struct{}{}
	}
	for _, k := range uidKeys {
		consumed[k] = struct{}{}
	}

	out := make([]Record, 0, len(rows))
	for _, row := range rows {
		get := func(col string) string {
			i, ok := idx[col]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		filename := pickFilename(get)
		var model, view string
		seq := ""
		if parsed, ok := schema.ParseAnyExt(filename); ok {
			model = parsed.Model
			view = parsed.ViewType
			seq = fmt.Sprintf("%02d", parsed.Sequence)
		} else {
			view = "unknown"
			seq = "00"
		}

		width := atoiSafe(get("width"))
		height := atoiSafe(get("height"))
		size := int64(atoiSafe(get("filesize")))

		sha := get("sha256")
		if sha == "" && filename != "" {
			if p := cfg.findDiskPath(model, filename); p != "" {
				if size == 0 {
					if info, err := os.Stat(p); err == nil {
						size = info.Size()
					}
				}
				if h, err := HashFile(p); err == nil {
					sha = h
					stats.Hashed++
				}
			}
		}

		processedAt := get("processed_at")
		if processedAt == "" {
			processedAt = time.Now().UTC().Format(time.RFC3339Nano)
		}
		source := get("source")
		if source == "" {
			source = cfg.Source
		}
		uid := get("uid")

		id := ""
		if model != "" {
			id = fmt.Sprintf("%s_%s_%s_%s", model, view, seq, DigestPrefix(sha))
		} else {
			id = FallbackID(uid, filename, sha)
		}

		// Overflow every unmapped legacy column into notes, preserving any
		// notes the row already carries.
		var chunks []string
		if prior := get("notes"); prior != "" {
			chunks = append(chunks, prior)
		}
		for i, col := range header {
			col = strings.TrimSpace(col)
			if _, ok := canonicalColumnSet[col]; ok {
				continue
			}
			if _, ok := consumed[col]; ok {
				continue
			}
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				continue
			}
			chunks = append(chunks, col+"="+strings.TrimSpace(row[i]))
		}

		out = append(out, Record{
			ID:           id,
			Filename:     filename,
			Model:        model,
			ViewType:     view,
			Sequence:     seq,
			Width:        width,
			Height:       height,
			Filesize:     size,
			SHA256:       sha,
			ProcessedAt:  processedAt,
			Source:       source,
			UID:          uid,
			ManifestPath: get("sha256_manifest_path"),
			Notes:        strings.Join(chunks, "\n"),
		})
	}

	merged := MergeRecords(nil, out)
	SortRecords(merged)
	stats.Rows = len(merged)

	bkp := strings.TrimSuffix(cfg.MasterPath, filepath.Ext(cfg.MasterPath)) + ".pre_migrate.bak.csv"
	if err := os.Rename(cfg.MasterPath, bkp); err == nil {
		stats.BackupPath = bkp
	}

	if err := PersistTable(cfg.MasterPath, merged); err != nil {
		return stats, err
	}
	return stats, nil
}
