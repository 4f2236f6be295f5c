package catalog

import (
	"os"

	"gopkg.in/yaml.v3"
)

type ThumbsConfig struct {
	MaxSide int `yaml:"max_side"`
	Quality int `yaml:"quality"`
}

type IndexConfig struct {
	DB string `yaml:"db"`
}

// FileConfig is the optional YAML configuration. Every field has a working
// default; a missing or unreadable config file never blocks the pipeline.
type FileConfig struct {
	// Root is the per-bag photo root (<root>/<MODEL>/photos/*).
	Root string `yaml:"root"`
	// Master is the canonical metadata CSV.
	Master string `yaml:"master"`
	// Checksums is the directory holding per-model .sha256 manifests.
	Checksums string `yaml:"checksums"`
	// RepoRoot anchors the relative paths recorded in manifests.
	RepoRoot string `yaml:"repo_root"`
	// Source is the provenance label stamped on new rows.
	Source string `yaml:"source"`

	Extensions   []string     `yaml:"extensions"`
	ModelPattern string       `yaml:"model_pattern"`
	Thumbs       ThumbsConfig `yaml:"thumbs"`
	Index        IndexConfig  `yaml:"index"`
	Debug        bool         `yaml:"debug"`
}

func DefaultConfig() *FileConfig {
	return &FileConfig{
		Root:      "data/02_Models",
		Master:    "data/master_metadata.csv",
		Checksums: "data/checksums",
		RepoRoot:  ".",
		Source:    "local_ingest",
		Thumbs:    ThumbsConfig{MaxSide: 1600, Quality: 88},
		Index:     IndexConfig{DB: "data/catalog_index.db"},
	}
}

// LoadConfig reads a YAML config and fills unset fields with defaults.
// Missing or unreadable files yield the defaults unchanged.
func LoadConfig(path string) *FileConfig {
	cfg := DefaultConfig()
	if path == "" {
		return cfg
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var loaded FileConfig
	if err := yaml.Unmarshal(b, &loaded); err != nil {
		return cfg
	}
	mergeConfig(cfg, &loaded)
	return cfg
}

func mergeConfig(dst, src *FileConfig) {
	if src.Root != "" {
		dst.Root = src.Root
	}
	if src.Master != "" {
		dst.Master = src.Master
	}
	if src.Checksums != "" {
		dst.Checksums = src.Checksums
	}
	if src.RepoRoot != "" {
		dst.RepoRoot = src.RepoRoot
	}
	if src.Source != "" {
		dst.Source = src.Source
	}
	if len(src.Extensions) > 0 {
		dst.Extensions = src.Extensions
	}
	if src.ModelPattern != "" {
		dst.ModelPattern = src.ModelPattern
	}
	if src.Thumbs.MaxSide > 0 {
		dst.Thumbs.MaxSide = src.Thumbs.MaxSide
	}
	if src.Thumbs.Quality > 0 {
		dst.Thumbs.Quality = src.Thumbs.Quality
	}
	if src.Index.DB != "" {
		dst.Index.DB = src.Index.DB
	}
	if src.Debug {
		dst.Debug = true
	}
}

// Schema builds the filename schema from the configured pattern and
// extension allow-list.
func (c *FileConfig) Schema() (*Schema, error) {
	return NewSchema(SchemaConfig{
		ModelPattern: c.ModelPattern,
		Extensions:   c.Extensions,
	})
}
