package git

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// PathFilter selects the repository-relative paths a TreeSource exposes.
type PathFilter interface {
	Match(relPath string) bool
}

// TreeSource lists and reads the files of a release tree. It satisfies the
// scanner's Source interface, and its paths are repository-relative, so
// records produced from it can be labeled with BuggyFiles directly.
type TreeSource struct {
	tag    string
	tree   *object.Tree
	filter PathFilter

	// go-git object storage is not safe for concurrent reads
	mu sync.Mutex
}

// TreeSource returns a source over the tree of the commit tagged tag. A nil
// filter exposes every regular file.
func (r *Repository) TreeSource(tag string, filter PathFilter) (*TreeSource, error) {
	commit, err := r.commitForTag(tag)
	if err != nil {
		return nil, err
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", tag, err)
	}

	return &TreeSource{tag: tag, tree: tree, filter: filter}, nil
}

// Tag returns the release tag the tree belongs to.
func (s *TreeSource) Tag() string {
	return s.tag
}

// Files returns the matching regular files of the tree in lexical order.
// Symlinks and submodules are skipped.
func (s *TreeSource) Files(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var files []string
	err := s.tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			return nil
		}
		if s.filter != nil && !s.filter.Match(f.Name) {
			return nil
		}
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ReadFile returns the content of path at the release.
func (s *TreeSource) ReadFile(path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.tree.File(path)
	if err != nil {
		return nil, fmt.Errorf("%s@%s: %w", path, s.tag, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
