package syncstate

import (
	"crypto/md5"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// hashChunkSize is the streaming read buffer used while fingerprinting a
// file, per spec §4.A ("stream the file in 64 KiB chunks").
const hashChunkSize = 64 * 1024

// Scanner walks a sync root and produces the set of currently-present
// files, their fingerprint, size, and modification time.
type Scanner struct {
	root   string
	ignore *gitignore.GitIgnore
}

// NewScanner builds a Scanner rooted at root, compiling patterns (spec
// §6 sync.ignore_patterns) into a single gitignore-style matcher, the same
// library the teacher's ignore list uses.
func NewScanner(root string, patterns []string) *Scanner {
	var ignore *gitignore.GitIgnore
	if len(patterns) > 0 {
		ignore = gitignore.CompileIgnoreLines(patterns...)
	}
	return &Scanner{root: root, ignore: ignore}
}

// Scan walks the sync root, returning a map of normalized relative path to
// the freshly computed FileEntry for every non-ignored, non-symlink file.
// Version/Status are left zero-valued; Reconcile fills them in against the
// previous state.
func (s *Scanner) Scan() (map[string]*FileEntry, error) {
	found := make(map[string]*FileEntry)

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("walk %q: %w", p, walkErr)
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", p, err)
		}
		rel = NormPath(rel)

		if s.ignore != nil && s.ignore.MatchesPath(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %q: %w", p, err)
		}

		hash, err := hashFile(p)
		if err != nil {
			return fmt.Errorf("hash %q: %w", p, err)
		}

		found[rel] = &FileEntry{
			Path:     rel,
			Hash:     hash,
			Size:     info.Size(),
			Modified: info.ModTime(),
			Status:   StatusActive,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", s.root, err)
	}

	return found, nil
}

// hashFile computes the MD5 fingerprint of a file's content, streamed in
// fixed-size chunks so large files never need to be read into memory
// whole (spec §8 property 1: hash depends only on content).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashFile is exported for callers (e.g. the transfer layer) that need to
// verify a received file's content against its advertised hash.
func HashFile(path string) (string, error) {
	return hashFile(path)
}
