package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ImportConfig configures a per-bag import of raw photos from an incoming
// folder into the canonical layout.
type ImportConfig struct {
	// Bag is the model code the incoming photos belong to.
	Bag string
	// InDir is the folder holding the raw photos.
	InDir string
	// Root is the per-bag photo root; imported files land at
	// <Root>/<Bag>/photos/.
	Root string
	// MasterPath is the canonical metadata CSV.
	MasterPath string
	// Mode is "resize" (normalize to MaxDim, EXIF orientation baked in) or
	// "copy" (raw bytes placed as-is).
	Mode string
	// MaxDim bounds the long side in resize mode.
	MaxDim int
	// Source is the provenance label stamped on new rows.
	Source string
	// DryRun reports counts only; nothing is written.
	DryRun bool
	Debug  bool
}

// SkippedFile is one row of the per-bag skip report.
type SkippedFile struct {
	Filename string
	Reason   string
}

// ImportStats is the run report.
type ImportStats struct {
	Imported        int
	SkippedBadName  int
	SkippedMismatch int
	SkippedKnown    int
	TotalRows       int
	ReportPath      string
}

// Importer places incoming photos for one bag into the canonical layout and
// merges their metadata into the master table, deduplicating by digest.
// Checksum manifests stay the ingest pass' job; imported files are picked up
// there by the same digest identity.
type Importer struct {
	cfg       ImportConfig
	schema    *Schema
	inspector ImageInspector
}

func NewImporter(cfg ImportConfig, schema *Schema, inspector ImageInspector) (*Importer, error) {
	if cfg.Bag == "" {
		return nil, fmt.Errorf("Bag is required")
	}
	if cfg.InDir == "" {
		return nil, fmt.Errorf("InDir is required")
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("Root is required")
	}
	if cfg.MasterPath == "" {
		return nil, fmt.Errorf("MasterPath is required")
	}
	if cfg.Mode == "" {
		cfg.Mode = "resize"
	}
	if cfg.Mode != "resize" && cfg.Mode != "copy" {
		return nil, fmt.Errorf("unknown mode: %q (want resize or copy)", cfg.Mode)
	}
	if cfg.MaxDim <= 0 {
		cfg.MaxDim = 2048
	}
	if cfg.Source == "" {
		cfg.Source = "bag_import"
	}
	cfg.Bag = strings.ToUpper(cfg.Bag)
	if schema == nil {
		schema = MustSchema()
	}
	if inspector == nil {
		inspector = DecodeInspector{}
	}
	return &Importer{cfg: cfg, schema: schema, inspector: inspector}, nil
}

func (im *Importer) debugf(format string, args ...any) {
	if im == nil || !im.cfg.Debug {
		return
	}
	log.Printf(format, args...)
}

// Run performs one import pass. Non-conforming and wrong-bag filenames are
// collected into a skip report next to the master table; files whose digest
// is already known still land in the canonical layout but add no row.
func (im *Importer) Run() (ImportStats, error) {
	stats := ImportStats{}
	cfg := im.cfg

	if _, err := os.Stat(cfg.InDir); err != nil {
		return stats, fmt.Errorf("input folder not found: %s", cfg.InDir)
	}

	existing, err := LoadTable(cfg.MasterPath)
	if err != nil {
		return stats, err
	}
	known := DigestSet(existing)
	stats.TotalRows = len(existing)

	outDir := filepath.Join(cfg.Root, cfg.Bag, "photos")
	if !cfg.DryRun {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return stats, err
		}
	}

	entries, err := os.ReadDir(cfg.InDir)
	if err != nil {
		return stats, err
	}

	th := &Thumbnailer{MaxSide: cfg.MaxDim, Quality: 95}
	var skipped []SkippedFile
	var fresh []Record
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		src := filepath.Join(cfg.InDir, name)

		parsed, ok := Parsed{}, false
		if im.schema.AllowedExt(name) {
			parsed, ok = im.schema.Parse(name)
		}
		if !ok {
			im.debugf("skip malformed name=%q", name)
			skipped = append(skipped, SkippedFile{Filename: name, Reason: "bad_filename"})
			stats.SkippedBadName++
			continue
		}
		if parsed.Model != cfg.Bag {
			im.debugf("skip model mismatch name=%q found=%s want=%s", name, parsed.Model, cfg.Bag)
			skipped = append(skipped, SkippedFile{
				Filename: name,
				Reason:   fmt.Sprintf("model_mismatch (found %s)", parsed.Model),
			})
			stats.SkippedMismatch++
			continue
		}

		// The recorded file: a placed copy on real runs, the source itself on
		// dry runs. Resize mode may re-encode the extension.
		recorded := src
		recordedName := name
		if !cfg.DryRun {
			dst := filepath.Join(outDir, name)
			if cfg.Mode == "resize" {
				dst = th.target(dst)
				if _, err := th.Make(src, dst); err != nil {
					return stats, fmt.Errorf("resize %s: %w", name, err)
				}
			} else {
				if err := copyFile(src, dst); err != nil {
					return stats, fmt.Errorf("copy %s: %w", name, err)
				}
			}
			recorded = dst
			recordedName = filepath.Base(dst)
		}

		sha, err := HashFile(recorded)
		if err != nil {
			return stats, err
		}
		if _, ok := known[sha]; ok {
			stats.SkippedKnown++
			continue
		}
		known[sha] = struct{}{}

		width, height := im.inspector.Dimensions(recorded)
		info, err := os.Stat(recorded)
		if err != nil {
			return stats, err
		}

		fresh = append(fresh, Record{
			ID:          RecordID(parsed.Model, parsed.ViewType, parsed.Sequence, sha),
			Filename:    recordedName,
			Model:       parsed.Model,
			ViewType:    parsed.ViewType,
			Sequence:    fmt.Sprintf("%02d", parsed.Sequence),
			Width:       width,
			Height:      height,
			Filesize:    info.Size(),
			SHA256:      sha,
			ProcessedAt: time.Now().UTC().Format(time.RFC3339Nano),
			Source:      cfg.Source,
		})
	}

	stats.Imported = len(fresh)
	if cfg.DryRun {
		stats.TotalRows = len(MergeRecords(existing, fresh))
		return stats, nil
	}

	if len(fresh) > 0 {
		merged := MergeRecords(existing, fresh)
		SortRecords(merged)
		if err := PersistTable(cfg.MasterPath, merged); err != nil {
			return stats, err
		}
		stats.TotalRows = len(merged)
	}

	if len(skipped) > 0 {
		report := filepath.Join(filepath.Dir(cfg.MasterPath), "skipped_filenames_"+cfg.Bag+".csv")
		if err := writeSkipReport(report, skipped); err != nil {
			return stats, err
		}
		stats.ReportPath = report
	}
	return stats, nil
}

func writeSkipReport(path string, skipped []SkippedFile) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"filename", "reason"}); err != nil {
		return err
	}
	for _, s := range skipped {
		if err := w.Write([]string{s.Filename, s.Reason}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
