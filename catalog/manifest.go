package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ManifestEntry is one (file, digest) pair destined for a group's manifest.
type ManifestEntry struct {
	Path   string
	Digest string
}

// ManifestStore maintains the per-group append-only checksum ledgers:
// one <MODEL>.sha256 file per group under Dir, each line holding
// "{digest}  {path}" with a two-space separator. Paths are recorded relative
// to Root when possible. The store is an audit trail independent of the
// master table; the table references it only by path.
type ManifestStore struct {
	Dir  string
	Root string
}

// Path returns the manifest location for a group, slash-separated, as it is
// recorded in the master table.
func (s *ManifestStore) Path(model string) string {
	return filepath.ToSlash(filepath.Join(s.Dir, model+".sha256"))
}

// Digests loads the set of digests already present in a group's manifest.
// A missing manifest yields an empty set.
func (s *ManifestStore) Digests(model string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	f, err := os.Open(filepath.Join(s.Dir, model+".sha256"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			out[fields[0]] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ManifestStore) relativize(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rootAbs, err := filepath.Abs(s.Root)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		// Out of tree (different volume etc): keep the absolute form.
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Append records new digests in a group's manifest. Digests already present
// (in the file or earlier in the batch) are dropped; when nothing new
// remains no write happens at all, keeping re-runs byte-identical. New lines
// land after the existing content, in input order, through an atomic
// replacement of the whole file. Returns the manifest path for the caller to
// stamp on its records.
func (s *ManifestStore) Append(model string, entries []ManifestEntry) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(s.Dir, model+".sha256")

	existing, err := s.Digests(model)
	if err != nil {
		return "", err
	}

	var add bytes.Buffer
	for _, e := range entries {
		if e.Digest == "" {
			continue
		}
		if _, ok := existing[e.Digest]; ok {
			continue
		}
		existing[e.Digest] = struct{}{}
		add.WriteString(e.Digest)
		add.WriteString("  ")
		add.WriteString(s.relativize(e.Path))
		add.WriteString("\n")
	}
	if add.Len() == 0 {
		return filepath.ToSlash(out), nil
	}

	old, err := os.ReadFile(out)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	var merged bytes.Buffer
	merged.Write(old)
	if len(old) > 0 && old[len(old)-1] != '\n' {
		merged.WriteByte('\n')
	}
	merged.Write(add.Bytes())

	if err := WriteFileAtomic(out, merged.Bytes()); err != nil {
		return "", err
	}
	return filepath.ToSlash(out), nil
}
