package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"photo-catalog/catalog"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: photo-catalog <command> [flags]

commands:
  ingest          scan bag folders, merge new photo metadata into the master table
  import          place incoming raw photos for one bag into the canonical layout
  fix-filenames   normalize non-conforming image filenames to the canonical schema
  repair-table    fill missing model/viewtype/sequence from the filename column
  normalize       zero-pad sequences and rebuild record ids
  migrate         migrate a legacy master table to the canonical schema
  clean           drop empty-filename rows, de-duplicate and re-sort the table
  index           mirror the master table into a queryable SQLite database
  thumbs          refresh per-bag thumbnails

run "photo-catalog <command> -h" for command flags`)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "ingest":
		code = cmdIngest(os.Args[2:])
	case "import":
		code = cmdImport(os.Args[2:])
	case "fix-filenames":
		code = cmdFixFilenames(os.Args[2:])
	case "repair-table":
		code = cmdRepairTable(os.Args[2:])
	case "normalize":
		code = cmdNormalize(os.Args[2:])
	case "migrate":
		code = cmdMigrate(os.Args[2:])
	case "clean":
		code = cmdClean(os.Args[2:])
	case "index":
		code = cmdIndex(os.Args[2:])
	case "thumbs":
		code = cmdThumbs(os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %q\n\n", os.Args[1])
		usage()
		code = 2
	}
	os.Exit(code)
}

// loadMerged loads the YAML config and applies CLI overrides for flags the
// user actually set.
func loadMerged(fs *flag.FlagSet, configPath string) (*catalog.FileConfig, map[string]bool) {
	cfg := catalog.LoadConfig(configPath)
	visited := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = true
	})
	return cfg, visited
}

func buildSchema(cfg *catalog.FileConfig) *catalog.Schema {
	schema, err := cfg.Schema()
	if err != nil {
		log.Fatalf("build schema: %v", err)
	}
	return schema
}

func cmdIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	root := fs.String("root", "", "Per-bag root (<root>/<MODEL>/photos).")
	master := fs.String("master", "", "Master metadata CSV path.")
	checksums := fs.String("checksums", "", "Checksum manifest directory.")
	repoRoot := fs.String("repo-root", "", "Root for relative manifest paths.")
	source := fs.String("source", "", "Source label for provenance.")
	dryRun := fs.Bool("dry-run", false, "Preview only; no writes.")
	noDims := fs.Bool("no-dims", false, "Skip image dimension reads (record 0x0).")
	thumbs := fs.Bool("thumbs", false, "Also generate thumbnails per bag.")
	thumbMaxSide := fs.Int("thumb-max-side", 0, "Thumbnail max long side.")
	thumbQuality := fs.Int("thumb-quality", 0, "Thumbnail JPEG quality.")
	debug := fs.Bool("debug", false, "Enable debug logs.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["root"] {
		cfg.Root = *root
	}
	if visited["master"] {
		cfg.Master = *master
	}
	if visited["checksums"] {
		cfg.Checksums = *checksums
	}
	if visited["repo-root"] {
		cfg.RepoRoot = *repoRoot
	}
	if visited["source"] {
		cfg.Source = *source
	}
	if visited["thumb-max-side"] {
		cfg.Thumbs.MaxSide = *thumbMaxSide
	}
	if visited["thumb-quality"] {
		cfg.Thumbs.Quality = *thumbQuality
	}
	if visited["debug"] {
		cfg.Debug = *debug
	}

	var inspector catalog.ImageInspector = catalog.DecodeInspector{}
	if *noDims {
		inspector = catalog.NullInspector{}
	}

	ing, err := catalog.NewIngestor(catalog.IngestConfig{
		Root:         cfg.Root,
		MasterPath:   cfg.Master,
		ChecksumsDir: cfg.Checksums,
		RepoRoot:     cfg.RepoRoot,
		Source:       cfg.Source,
		DryRun:       *dryRun,
		Thumbs:       *thumbs,
		ThumbMaxSide: cfg.Thumbs.MaxSide,
		ThumbQuality: cfg.Thumbs.Quality,
		Debug:        cfg.Debug,
	}, buildSchema(cfg), inspector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}

	stats, err := ing.RunOnce()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}

	if *dryRun {
		fmt.Printf("[DRY] would add %d new rows; master would become %d rows\n", stats.NewRows, stats.TotalRows)
		return 0
	}
	fmt.Printf("new_rows=%d skipped_known=%d skipped_no_parse=%d total_rows=%d\n",
		stats.NewRows, stats.SkippedKnown, stats.SkippedNoParse, stats.TotalRows)
	if *thumbs {
		fmt.Printf("thumbnails: created=%d, up_to_date=%d\n", stats.ThumbsMade, stats.ThumbsUpToDate)
	}
	return 0
}

func cmdImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	bag := fs.String("bag", "", "Model code (e.g. BA2037-089).")
	inDir := fs.String("in", "", "Input folder with raw photos for this bag.")
	root := fs.String("root", "", "Per-bag root (<root>/<MODEL>/photos).")
	master := fs.String("master", "", "Master metadata CSV path.")
	mode := fs.String("mode", "resize", "resize (normalize to max dimension) or copy.")
	maxDim := fs.Int("max-dim", 2048, "Max width/height in pixels when resizing.")
	source := fs.String("source", "", "Source label for provenance (default bag_import).")
	dryRun := fs.Bool("dry-run", false, "Preview only; no writes.")
	noDims := fs.Bool("no-dims", false, "Skip image dimension reads (record 0x0).")
	debug := fs.Bool("debug", false, "Enable debug logs.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["root"] {
		cfg.Root = *root
	}
	if visited["master"] {
		cfg.Master = *master
	}
	if visited["debug"] {
		cfg.Debug = *debug
	}

	var inspector catalog.ImageInspector = catalog.DecodeInspector{}
	if *noDims {
		inspector = catalog.NullInspector{}
	}

	im, err := catalog.NewImporter(catalog.ImportConfig{
		Bag:        *bag,
		InDir:      *inDir,
		Root:       cfg.Root,
		MasterPath: cfg.Master,
		Mode:       *mode,
		MaxDim:     *maxDim,
		Source:     *source,
		DryRun:     *dryRun,
		Debug:      cfg.Debug,
	}, buildSchema(cfg), inspector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}

	stats, err := im.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}

	if *dryRun {
		fmt.Printf("[DRY] would import %d files; master would become %d rows\n", stats.Imported, stats.TotalRows)
		return 0
	}
	fmt.Printf("imported=%d skipped_bad=%d skipped_mismatch=%d skipped_known=%d total_rows=%d\n",
		stats.Imported, stats.SkippedBadName, stats.SkippedMismatch, stats.SkippedKnown, stats.TotalRows)
	if stats.ReportPath != "" {
		fmt.Printf("skip_report=%s\n", stats.ReportPath)
	}
	return 0
}

func cmdFixFilenames(args []string) int {
	fs := flag.NewFlagSet("fix-filenames", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	root := fs.String("root", "", "Folder to scan for images.")
	dryRun := fs.Bool("dry-run", false, "Only log changes (no renames).")
	logPath := fs.String("log", "logs/fix_filenames.tsv", "TSV log path.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["root"] {
		cfg.Root = *root
	}

	fr := &catalog.FilenameRepairer{Schema: buildSchema(cfg), DryRun: *dryRun}
	actions, err := fr.Run(cfg.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	if err := catalog.WriteRenameLog(*logPath, actions); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: write log: %v\n", err)
		return 2
	}
	fmt.Printf("planned_renames=%d\n", catalog.PlannedRenames(actions))
	fmt.Printf("log=%s\n", *logPath)
	return 0
}

func cmdRepairTable(args []string) int {
	fs := flag.NewFlagSet("repair-table", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	master := fs.String("master", "", "Master metadata CSV path.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["master"] {
		cfg.Master = *master
	}

	repaired, err := catalog.RepairTableFromFilenames(buildSchema(cfg), cfg.Master)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	fmt.Printf("repaired=%d\n", repaired)
	return 0
}

func cmdNormalize(args []string) int {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	master := fs.String("master", "", "Master metadata CSV path.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["master"] {
		cfg.Master = *master
	}

	rows, err := catalog.NormalizeTable(cfg.Master)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	fmt.Printf("normalized sequences and refreshed ids (rows=%d)\n", rows)
	return 0
}

func cmdMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	master := fs.String("master", "", "Master metadata CSV path.")
	root := fs.String("root", "", "Per-bag photo root for locating files on disk.")
	legacyRoot := fs.String("legacy-root", "data/photos", "Legacy flat photo layout root.")
	source := fs.String("source", "legacy_migration", "Source label for rows without provenance.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["master"] {
		cfg.Master = *master
	}
	if visited["root"] {
		cfg.Root = *root
	}

	stats, err := catalog.MigrateToCanonical(buildSchema(cfg), catalog.MigrateConfig{
		MasterPath:      cfg.Master,
		PhotoRoot:       cfg.Root,
		LegacyPhotoRoot: *legacyRoot,
		Source:          *source,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	if stats.BackupPath != "" {
		fmt.Printf("backed up old master: %s\n", stats.BackupPath)
	}
	fmt.Printf("migrated rows=%d hashed_from_disk=%d\n", stats.Rows, stats.Hashed)
	return 0
}

func cmdClean(args []string) int {
	fs := flag.NewFlagSet("clean", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	master := fs.String("master", "", "Master metadata CSV path.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["master"] {
		cfg.Master = *master
	}

	rows, err := catalog.CleanTable(cfg.Master)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	fmt.Printf("cleaned (rows=%d)\n", rows)
	return 0
}

func cmdIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	master := fs.String("master", "", "Master metadata CSV path.")
	dbPath := fs.String("db", "", "SQLite index database path.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["master"] {
		cfg.Master = *master
	}
	if visited["db"] {
		cfg.Index.DB = *dbPath
	}

	recs, err := catalog.LoadTable(cfg.Master)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	db, err := catalog.OpenIndexDB(cfg.Index.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: open index: %v\n", err)
		return 2
	}
	defer catalog.CloseDB(db)

	if err := catalog.RebuildIndex(db, recs); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: rebuild index: %v\n", err)
		return 2
	}
	fmt.Printf("indexed rows=%d db=%s\n", len(recs), cfg.Index.DB)
	return 0
}

func cmdThumbs(args []string) int {
	fs := flag.NewFlagSet("thumbs", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file path.")
	root := fs.String("root", "", "Per-bag root (<root>/<MODEL>/photos).")
	maxSide := fs.Int("max-side", 0, "Thumbnail max long side.")
	quality := fs.Int("quality", 0, "Thumbnail JPEG quality.")
	_ = fs.Parse(args)

	cfg, visited := loadMerged(fs, *configPath)
	if visited["root"] {
		cfg.Root = *root
	}
	if visited["max-side"] {
		cfg.Thumbs.MaxSide = *maxSide
	}
	if visited["quality"] {
		cfg.Thumbs.Quality = *quality
	}

	made, upToDate, err := catalog.RunThumbs(cfg.Root, buildSchema(cfg), &catalog.Thumbnailer{
		MaxSide: cfg.Thumbs.MaxSide,
		Quality: cfg.Thumbs.Quality,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 2
	}
	fmt.Printf("thumbnails: created=%d, up_to_date=%d\n", made, upToDate)
	return 0
}
