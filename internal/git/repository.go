// Package git mines a local clone for the data the labeling step needs:
// non-patch release tags, the post-release window of the target release,
// bug-fix commits inside that window and the files they touched.
// It uses go-git, so no git binary is required and release trees are read
// straight from the object store without a checkout.
package git

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNotGitRepo         = errors.New("path is not a git repository")
	ErrNotEnoughReleases  = errors.New("not enough releases")
	ErrReleaseNotFound    = errors.New("release tag not found")
	ErrInvalidTagPattern  = errors.New("tag pattern must not be empty")
	ErrInvalidBugfixRegex = errors.New("bug-fix pattern must not be empty")
)

// DateLayout is the YYYY-MM-DD form of window boundaries.
const DateLayout = "2006-01-02"

// =============================================================================
// Types
// =============================================================================

// Release is a version tag of the repository.
type Release struct {
	Tag    string
	Date   time.Time
	Commit string
}

// Window is the post-release period of a target release: from the day the
// target was tagged through the day the latest release was tagged.
type Window struct {
	Target Release
	Latest Release
	Since  time.Time // 00:00 UTC of the target's day
	Until  time.Time // last instant of the latest release's day, UTC
}

// StartDate returns the first day of the window as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Since.Format(DateLayout) }

// EndDate returns the last day of the window as YYYY-MM-DD.
func (w Window) EndDate() string { return w.Until.Format(DateLayout) }

// Commit is a commit selected as a bug fix.
type Commit struct {
	Hash    string
	Subject string
	When    time.Time
	Files   []string // repository-relative paths changed by the commit
}

// =============================================================================
// Repository
// =============================================================================

// Repository wraps a go-git repository opened from disk.
type Repository struct {
	path string
	repo *gogit.Repository
}

// Open opens the repository at path. A path inside a working tree is not
// enough: path must be the repository root (or a bare repository).
func Open(path string) (*Repository, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	repo, err := gogit.PlainOpen(absPath)
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", absPath, ErrNotGitRepo)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}

	return &Repository{path: absPath, repo: repo}, nil
}

// Path returns the absolute repository path.
func (r *Repository) Path() string {
	return r.path
}

// =============================================================================
// Releases
// =============================================================================

// Releases returns the tags matching tagPattern whose last capture group (the
// patch number) is zero, newest first. An annotated tag is dated by its
// tagger, a lightweight tag by the committer of the tagged commit. Tags with
// the same date are ordered by name, descending.
func (r *Repository) Releases(tagPattern string) ([]Release, error) {
	if tagPattern == "" {
		return nil, ErrInvalidTagPattern
	}
	pattern, err := regexp.Compile(tagPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid tag pattern: %w", err)
	}

	refs, err := r.repo.Tags()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer refs.Close()

	var releases []Release
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if !isNonPatchRelease(pattern, name) {
			return nil
		}

		commit, date, err := r.resolveTag(ref)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %s: %w", name, err)
		}
		releases = append(releases, Release{Tag: name, Date: date, Commit: commit.Hash.String()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(releases, func(i, j int) bool {
		if !releases[i].Date.Equal(releases[j].Date) {
			return releases[i].Date.After(releases[j].Date)
		}
		return releases[i].Tag > releases[j].Tag
	})
	return releases, nil
}

// isNonPatchRelease reports whether name matches pattern with a patch group
// equal to zero. Patterns without capture groups accept every match.
func isNonPatchRelease(pattern *regexp.Regexp, name string) bool {
	groups := pattern.FindStringSubmatch(name)
	if groups == nil {
		return false
	}
	if len(groups) < 2 {
		return true
	}
	patch := strings.TrimLeft(groups[len(groups)-1], "0")
	return patch == ""
}

// resolveTag returns the commit a tag points to and the tag's date.
func (r *Repository) resolveTag(ref *plumbing.Reference) (*object.Commit, time.Time, error) {
	tag, err := r.repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, err := tag.Commit()
		if err != nil {
			return nil, time.Time{}, err
		}
		return commit, tag.Tagger.When, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, time.Time{}, err
		}
		return commit, commit.Committer.When, nil
	default:
		return nil, time.Time{}, err
	}
}

// commitForTag resolves a tag name to its commit.
func (r *Repository) commitForTag(name string) (*object.Commit, error) {
	ref, err := r.repo.Tag(name)
	if err != nil {
		if errors.Is(err, gogit.ErrTagNotFound) {
			return nil, fmt.Errorf("%s: %w", name, ErrReleaseNotFound)
		}
		return nil, err
	}
	commit, _, err := r.resolveTag(ref)
	return commit, err
}

// =============================================================================
// Timeline
// =============================================================================

// Timeline selects the release offset positions below the newest one (0 is
// the newest) and spans the window from its day to the newest release's day.
// releases must be ordered newest first, as returned by Releases.
func Timeline(releases []Release, offset int) (Window, error) {
	if offset < 0 {
		return Window{}, fmt.Errorf("negative release offset %d", offset)
	}
	if len(releases) <= offset {
		return Window{}, fmt.Errorf("%w: need more than %d, have %d", ErrNotEnoughReleases, offset, len(releases))
	}

	target, latest := releases[offset], releases[0]
	since := startOfDay(target.Date)
	until := startOfDay(latest.Date).Add(24*time.Hour - time.Nanosecond)

	return Window{Target: target, Latest: latest, Since: since, Until: until}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// Bug-fix commits
// =============================================================================

// BugFixCommits returns the commits reachable from HEAD, committed between
// since and until inclusive, whose message matches pattern. Commits are
// returned newest first with their changed files.
func (r *Repository) BugFixCommits(since, until time.Time, pattern string) ([]Commit, error) {
	if pattern == "" {
		return nil, ErrInvalidBugfixRegex
	}
	matcher, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid bug-fix pattern: %w", err)
	}

	iter, err := r.repo.Log(&gogit.LogOptions{Since: &since, Until: &until})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if !matcher.MatchString(c.Message) {
			return nil
		}

		stats, err := c.Stats()
		if err != nil {
			return fmt.Errorf("failed to diff commit %s: %w", c.Hash, err)
		}
		files := make([]string, len(stats))
		for i, stat := range stats {
			files[i] = stat.Name
		}

		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Subject: extractSubject(c.Message),
			When:    c.Committer.When,
			Files:   files,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return commits, nil
}

// extractSubject returns the first line of the commit message.
func extractSubject(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return message[:i]
	}
	return message
}

// BuggyFiles returns the distinct files changed by commits whose name ends
// with one of fileTypes, sorted.
func BuggyFiles(commits []Commit, fileTypes []string) []string {
	seen := make(map[string]struct{})
	for _, c := range commits {
		for _, f := range c.Files {
			if hasAnySuffix(f, fileTypes) {
				seen[f] = struct{}{}
			}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
