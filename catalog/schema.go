package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DefaultModelPattern matches the bag code format: four digits, hyphen, three digits,
// with the alphabetic prefix.
const DefaultModelPattern = `BA\d{4}-\d{3}`

// DefaultExtensions is the canonical image extension allow-list.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// DefaultViewHints maps a viewtype to substrings that suggest it in a legacy filename.
var DefaultViewHints = map[string][]string{
	"front":  {"front", "fr", "main"},
	"back":   {"back", "bk"},
	"side":   {"side", "sd", "left", "right"},
	"top":    {"top", "tp"},
	"bottom": {"bottom", "btm", "base"},
	"detail": {"detail", "close", "macro"},
	"tag":    {"tag", "label", "care", "wash", "size"},
}

// SchemaConfig configures the filename schema. Zero values fall back to the
// canonical defaults, so Schema instances stay independently testable with
// alternate patterns and extension lists.
type SchemaConfig struct {
	ModelPattern string
	Extensions   []string
	ViewHints    map[string][]string
}

// Parsed is the result of matching a filename against the canonical schema
// {MODEL}_{view}_{NN}.{ext}.
type Parsed struct {
	Model    string
	ViewType string
	Sequence int
}

// Schema parses and validates canonical photo filenames.
type Schema struct {
	exts      map[string]struct{}
	viewHints map[string][]string
	strict    *regexp.Regexp
	anyExt    *regexp.Regexp
	loose     *regexp.Regexp
	model     *regexp.Regexp
}

func NewSchema(cfg SchemaConfig) (*Schema, error) {
	modelPat := cfg.ModelPattern
	if modelPat == "" {
		modelPat = DefaultModelPattern
	}
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	hints := cfg.ViewHints
	if hints == nil {
		hints = DefaultViewHints
	}

	extSet := make(map[string]struct{}, len(exts))
	alts := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		extSet[e] = struct{}{}
		alts = append(alts, regexp.QuoteMeta(strings.TrimPrefix(e, ".")))
	}
	if len(extSet) == 0 {
		return nil, fmt.Errorf("schema: empty extension list")
	}

	// Named groups keep parsing correct when a configured model pattern
	// carries capture groups of its own, which would shift positional indexes.
	modelGroup := `(?P<model>` + modelPat + `)`

	strict, err := regexp.Compile(`(?i)^` + modelGroup + `_(?P<view>[a-z]+)_(?P<seq>\d{2})\.(` + strings.Join(alts, "|") + `)$`)
	if err != nil {
		return nil, fmt.Errorf("schema: compile strict pattern: %w", err)
	}
	anyExt, err := regexp.Compile(`(?i)^` + modelGroup + `_(?P<view>[a-z]+)_(?P<seq>\d{2})\.[a-z0-9]+$`)
	if err != nil {
		return nil, fmt.Errorf("schema: compile any-ext pattern: %w", err)
	}
	loose, err := regexp.Compile(`(?i)` + modelGroup + `_(?P<view>[a-z]+)_(?P<seq>\d{2})\.[a-z0-9]+`)
	if err != nil {
		return nil, fmt.Errorf("schema: compile loose pattern: %w", err)
	}
	model, err := regexp.Compile(`(?i)` + modelGroup)
	if err != nil {
		return nil, fmt.Errorf("schema: compile model pattern: %w", err)
	}

	return &Schema{
		exts:      extSet,
		viewHints: hints,
		strict:    strict,
		anyExt:    anyExt,
		loose:     loose,
		model:     model,
	}, nil
}

// MustSchema builds a Schema with the canonical defaults.
func MustSchema() *Schema {
	s, err := NewSchema(SchemaConfig{})
	if err != nil {
		panic(err)
	}
	return s
}

// AllowedExt reports whether name carries an extension from the allow-list.
func (s *Schema) AllowedExt(name string) bool {
	_, ok := s.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

func parsedFromMatch(re *regexp.Regexp, m []string) Parsed {
	seq, _ := strconv.Atoi(m[re.SubexpIndex("seq")])
	return Parsed{
		Model:    strings.ToUpper(m[re.SubexpIndex("model")]),
		ViewType: strings.ToLower(m[re.SubexpIndex("view")]),
		Sequence: seq,
	}
}

// Parse matches name against the anchored canonical pattern with the
// configured extension allow-list. It never errors; a mismatch returns
// ok=false and callers decide whether to skip or escalate.
func (s *Schema) Parse(name string) (Parsed, bool) {
	m := s.strict.FindStringSubmatch(name)
	if m == nil {
		return Parsed{}, false
	}
	return parsedFromMatch(s.strict, m), true
}

// ParseAnyExt is Parse with the extension relaxed to any alphanumeric suffix.
// Used by table migration, where legacy rows may reference retired formats.
func (s *Schema) ParseAnyExt(name string) (Parsed, bool) {
	m := s.anyExt.FindStringSubmatch(name)
	if m == nil {
		return Parsed{}, false
	}
	return parsedFromMatch(s.anyExt, m), true
}

// Search finds the canonical pattern anywhere inside s (a legacy filename or
// a full path) and returns the first match. Repair and migration only; the
// ingest path always uses the strict Parse.
func (s *Schema) Search(in string) (Parsed, bool) {
	m := s.loose.FindStringSubmatch(in)
	if m == nil {
		return Parsed{}, false
	}
	return parsedFromMatch(s.loose, m), true
}

// FindModel extracts a bag code from anywhere in a path-like string.
func (s *Schema) FindModel(in string) string {
	m := s.model.FindStringSubmatch(in)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[s.model.SubexpIndex("model")])
}

// GuessView infers a viewtype from hint substrings in a legacy filename stem.
func (s *Schema) GuessView(name string) string {
	low := strings.ToLower(name)
	for _, vt := range []string{"front", "back", "side", "top", "bottom", "detail", "tag"} {
		keys, ok := s.viewHints[vt]
		if !ok {
			continue
		}
		for _, k := range keys {
			if strings.Contains(low, k) {
				return vt
			}
		}
	}
	// Custom hint tables may carry viewtypes beyond the canonical ones.
	for vt, keys := range s.viewHints {
		for _, k := range keys {
			if strings.Contains(low, k) {
				return vt
			}
		}
	}
	return "unknown"
}

// NextSequence scans dir for files already named {model}_{view}_{NN}.* and
// returns the highest existing sequence plus one.
func (s *Schema) NextSequence(dir, model, view string) int {
	pat, err := regexp.Compile(`(?i)^` + regexp.QuoteMeta(model) + `_` + regexp.QuoteMeta(view) + `_(\d{2})\.`)
	if err != nil {
		return 1
	}
	maxSeq := 0
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pat.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return maxSeq + 1
}
