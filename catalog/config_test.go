package catalog

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	def := DefaultConfig()
	if cfg.Root != def.Root || cfg.Master != def.Master || cfg.Checksums != def.Checksums {
		t.Fatalf("missing config must fall back to defaults: %+v", cfg)
	}
	if cfg.Thumbs.MaxSide != 1600 || cfg.Thumbs.Quality != 88 {
		t.Fatalf("unexpected thumbs defaults: %+v", cfg.Thumbs)
	}
}

func TestLoadConfigMergesPartialFile(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "catalog.yaml")
	writeFile(t, path, []byte("root: /mnt/photos\nsource: studio_batch\nthumbs:\n  max_side: 900\ndebug: true\n"))

	cfg := LoadConfig(path)
	if cfg.Root != "/mnt/photos" || cfg.Source != "studio_batch" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Thumbs.MaxSide != 900 || cfg.Thumbs.Quality != 88 {
		t.Fatalf("partial thumbs merge wrong: %+v", cfg.Thumbs)
	}
	if !cfg.Debug {
		t.Fatalf("debug flag lost")
	}
	// Untouched fields keep their defaults.
	if cfg.Master != DefaultConfig().Master || cfg.Index.DB != DefaultConfig().Index.DB {
		t.Fatalf("defaults clobbered: %+v", cfg)
	}
}

func TestLoadConfigBadYAMLUsesDefaults(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "catalog.yaml")
	writeFile(t, path, []byte("root: [unclosed\n"))

	cfg := LoadConfig(path)
	if cfg.Root != DefaultConfig().Root {
		t.Fatalf("bad yaml must not leak partial state: %+v", cfg)
	}
}

func TestFileConfigSchema(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPattern = `XX\d{3}`
	cfg.Extensions = []string{"jpg"}
	s, err := cfg.Schema()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Parse("XX123_front_01.jpg"); !ok {
		t.Fatalf("custom pattern not honored")
	}
	if _, ok := s.Parse("XX123_front_01.png"); ok {
		t.Fatalf("extension allow-list not honored")
	}
}
