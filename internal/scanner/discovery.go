package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// Matcher decides which slash-separated relative paths belong to a scan.
type Matcher struct {
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
}

// NewMatcher compiles include and ignore glob patterns.
func NewMatcher(includePatterns, ignorePatterns []string) (*Matcher, error) {
	m := &Matcher{}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		m.includePatterns = append(m.includePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, err
		}
		m.ignorePatterns = append(m.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return m, nil
}

// Match reports whether relPath is included and not ignored.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if m.Ignored(relPath) {
		return false
	}
	return matchesAnyPattern(relPath, m.includePatterns)
}

// Ignored reports whether relPath (a file or a directory) matches an ignore pattern.
func (m *Matcher) Ignored(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	// Always ignore the .pymetrix state directory
	if strings.HasPrefix(relPath, ".pymetrix/") || relPath == ".pymetrix" {
		return true
	}

	if matchesAnyPattern(relPath, m.ignorePatterns) {
		return true
	}

	// Also check if this is a directory that would match with /** suffix
	// For example, "node_modules" should match pattern "node_modules/**"
	pathWithSuffix := relPath + "/**"
	return matchesAnyPattern(pathWithSuffix, m.ignorePatterns)
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// Special handling: if path is in root (no slash), also try matching against
	// patterns with **/ prefix removed. This makes "**/*.py" match both "setup.py"
	// and "pkg/mod.py" as users would expect.
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

// DirSource is a Source over a directory tree on disk. File paths are
// slash-separated and relative to the root, so they line up with
// repository-relative paths from version control.
type DirSource struct {
	rootDir string
	matcher *Matcher
}

// NewDirSource creates a source discovering files below rootDir.
func NewDirSource(rootDir string, matcher *Matcher) *DirSource {
	return &DirSource{rootDir: rootDir, matcher: matcher}
}

// Files walks the directory tree and returns the matching files in lexical order.
func (d *DirSource) Files(ctx context.Context) ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(d.rootDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(d.rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if entry.IsDir() {
			if relPath != "." && d.matcher.Ignored(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.matcher.Match(relPath) {
			files = append(files, relPath)
		}
		return nil
	})

	return files, err
}

// ReadFile reads a file returned by Files.
func (d *DirSource) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.rootDir, filepath.FromSlash(path)))
}
