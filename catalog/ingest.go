package catalog

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// IngestConfig configures one reconciliation run.
type IngestConfig struct {
	// Root is the per-bag photo root; bags live at <Root>/<MODEL>/photos/.
	Root string
	// MasterPath is the canonical metadata CSV.
	MasterPath string
	// ChecksumsDir holds the per-model .sha256 manifests.
	ChecksumsDir string
	// RepoRoot anchors relative paths recorded in manifests.
	RepoRoot string
	// Source is the provenance label stamped on new rows.
	Source string
	// DryRun reports counts only; nothing is written.
	DryRun bool
	// Thumbs enables the per-bag thumbnail pass after ingest.
	Thumbs       bool
	ThumbMaxSide int
	ThumbQuality int
	Debug        bool
}

// IngestStats is the run report: new rows merged, files skipped and why,
// and the resulting table size.
type IngestStats struct {
	NewRows        int
	SkippedKnown   int
	SkippedNoParse int
	TotalRows      int
	ThumbsMade     int
	ThumbsUpToDate int
}

// Ingestor runs the scan -> parse -> hash -> manifest -> merge -> persist
// pipeline. Single writer, sequential; all persisted state is only touched
// through atomic rewrites at the end of each stage, so an aborted run leaves
// the table and manifests as they were.
type Ingestor struct {
	cfg       IngestConfig
	schema    *Schema
	inspector ImageInspector
	manifests *ManifestStore
}

func NewIngestor(cfg IngestConfig, schema *Schema, inspector ImageInspector) (*Ingestor, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("Root is required")
	}
	if cfg.MasterPath == "" {
		return nil, fmt.Errorf("MasterPath is required")
	}
	if cfg.ChecksumsDir == "" {
		return nil, fmt.Errorf("ChecksumsDir is required")
	}
	if cfg.RepoRoot == "" {
		cfg.RepoRoot = "."
	}
	if cfg.Source == "" {
		cfg.Source = "local_ingest"
	}
	if schema == nil {
		schema = MustSchema()
	}
	if inspector == nil {
		inspector = DecodeInspector{}
	}
	return &Ingestor{
		cfg:       cfg,
		schema:    schema,
		inspector: inspector,
		manifests: &ManifestStore{Dir: cfg.ChecksumsDir, Root: cfg.RepoRoot},
	}, nil
}

func (in *Ingestor) debugf(format string, args ...any) {
	if in == nil || !in.cfg.Debug {
		return
	}
	log.Printf(format, args...)
}

// findPhotoDirs locates every directory named "photos" under the root,
// sorted for deterministic processing order.
func findPhotoDirs(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == "photos" {
			dirs = append(dirs, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

type newEntry struct {
	rec  Record
	path string
}

// RunOnce performs one full reconciliation pass.
func (in *Ingestor) RunOnce() (IngestStats, error) {
	stats := IngestStats{}

	if _, err := os.Stat(in.cfg.Root); err != nil {
		return stats, fmt.Errorf("root not found: %s", in.cfg.Root)
	}

	existing, err := LoadTable(in.cfg.MasterPath)
	if err != nil {
		return stats, err
	}
	known := DigestSet(existing)
	in.debugf("ingest start: root=%q master=%q existing_rows=%d", in.cfg.Root, in.cfg.MasterPath, len(existing))

	dirs, err := findPhotoDirs(in.cfg.Root)
	if err != nil {
		return stats, err
	}

	var fresh []newEntry
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return stats, err
		}
		for _, e := range entries {
			if e.IsDir() || !in.schema.AllowedExt(e.Name()) {
				continue
			}
			p := filepath.Join(dir, e.Name())

			parsed, ok := in.schema.Parse(e.Name())
			if !ok {
				// Non-conforming names should have been normalized by the
				// fix-filenames pass; ingest never guesses.
				in.debugf("skip unparsed name=%q", e.Name())
				stats.SkippedNoParse++
				continue
			}

			sha, err := HashFile(p)
			if err != nil {
				return stats, err
			}
			if _, ok := known[sha]; ok {
				in.debugf("skip known digest name=%q sha=%s", e.Name(), sha)
				stats.SkippedKnown++
				continue
			}
			known[sha] = struct{}{}

			width, height := in.inspector.Dimensions(p)
			info, err := e.Info()
			if err != nil {
				return stats, err
			}

			rec := Record{
				ID:          RecordID(parsed.Model, parsed.ViewType, parsed.Sequence, sha),
				Filename:    e.Name(),
				Model:       parsed.Model,
				ViewType:    parsed.ViewType,
				Sequence:    fmt.Sprintf("%02d", parsed.Sequence),
				Width:       width,
				Height:      height,
				Filesize:    info.Size(),
				SHA256:      sha,
				ProcessedAt: time.Now().UTC().Format(time.RFC3339Nano),
				Source:      in.cfg.Source,
			}
			fresh = append(fresh, newEntry{rec: rec, path: p})
		}
	}

	stats.NewRows = len(fresh)
	stats.TotalRows = len(existing) + len(fresh)

	if len(fresh) == 0 {
		in.debugf("ingest: no new rows")
		if in.cfg.Thumbs && !in.cfg.DryRun {
			in.runThumbs(dirs, &stats)
		}
		stats.TotalRows = len(existing)
		return stats, nil
	}

	if in.cfg.DryRun {
		merged := MergeRecords(existing, records(fresh))
		stats.TotalRows = len(merged)
		return stats, nil
	}

	// Per-model manifest appends, then stamp the resolved manifest path onto
	// every new row of that model.
	byModel := make(map[string][]ManifestEntry)
	for _, ne := range fresh {
		byModel[ne.rec.Model] = append(byModel[ne.rec.Model], ManifestEntry{Path: ne.path, Digest: ne.rec.SHA256})
	}
	models := make([]string, 0, len(byModel))
	for m := range byModel {
		models = append(models, m)
	}
	sort.Strings(models)

	manifestByModel := make(map[string]string, len(models))
	for _, m := range models {
		mp, err := in.manifests.Append(m, byModel[m])
		if err != nil {
			return stats, err
		}
		manifestByModel[m] = mp
	}
	for i := range fresh {
		fresh[i].rec.ManifestPath = manifestByModel[fresh[i].rec.Model]
	}

	merged := MergeRecords(existing, records(fresh))
	SortRecords(merged)
	if err := PersistTable(in.cfg.MasterPath, merged); err != nil {
		return stats, err
	}
	stats.TotalRows = len(merged)
	in.debugf("ingest done: new=%d total=%d", stats.NewRows, stats.TotalRows)

	if in.cfg.Thumbs {
		in.runThumbs(dirs, &stats)
	}
	return stats, nil
}

func records(entries []newEntry) []Record {
	out := make([]Record, len(entries))
	for i, ne := range entries {
		out[i] = ne.rec
	}
	return out
}

// runThumbs refreshes per-bag thumbnails. Failures are per-file and soft.
func (in *Ingestor) runThumbs(dirs []string, stats *IngestStats) {
	th := &Thumbnailer{MaxSide: in.cfg.ThumbMaxSide, Quality: in.cfg.ThumbQuality}
	made, upToDate := refreshThumbs(dirs, in.schema, th, in.debugf)
	stats.ThumbsMade += made
	stats.ThumbsUpToDate += upToDate
}
