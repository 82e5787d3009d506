package git

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/pymetrix/internal/metrics"
	"github.com/mvp-joe/pymetrix/internal/scanner"
)

// Test Plan for Repository:
// - Open rejects directories that are not repositories with ErrNotGitRepo
// - Releases keeps only tags matching the pattern with a zero patch number, newest first
// - Annotated tags are dated by the tagger, lightweight tags by the committer
// - Timeline picks the release at the offset and spans whole UTC days up to the newest release
// - Timeline fails with ErrNotEnoughReleases when the offset is out of range
// - BugFixCommits returns matching commits inside the window with their changed files
// - BuggyFiles keeps distinct paths with the requested extensions
// - TreeSource lists and reads files of the tagged tree without a checkout
// - Scanning a TreeSource yields repository-relative records that label against BuggyFiles

const defaultBugfixPattern = `(?i)\b(fix(es|ed)?|bug|defect|fault|regression)\b`

// =============================================================================
// Test Fixtures
// =============================================================================

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 12, 0, 0, 0, time.UTC)
}

type fixtureRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
	wt   *gogit.Worktree
}

func newFixtureRepo(t *testing.T) *fixtureRepo {
	t.Helper()

	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	return &fixtureRepo{t: t, dir: dir, repo: repo, wt: wt}
}

func (f *fixtureRepo) commit(msg string, when time.Time, files map[string]string) plumbing.Hash {
	f.t.Helper()

	for rel, content := range files {
		path := filepath.Join(f.dir, filepath.FromSlash(rel))
		require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
		_, err := f.wt.Add(rel)
		require.NoError(f.t, err)
	}

	hash, err := f.wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Dev", Email: "dev@example.com", When: when},
	})
	require.NoError(f.t, err)
	return hash
}

func (f *fixtureRepo) lightweightTag(name string, hash plumbing.Hash) {
	f.t.Helper()
	_, err := f.repo.CreateTag(name, hash, nil)
	require.NoError(f.t, err)
}

func (f *fixtureRepo) annotatedTag(name string, hash plumbing.Hash, when time.Time) {
	f.t.Helper()
	_, err := f.repo.CreateTag(name, hash, &gogit.CreateTagOptions{
		Tagger:  &object.Signature{Name: "Release Bot", Email: "release@example.com", When: when},
		Message: "Release " + name,
	})
	require.NoError(f.t, err)
}

// releaseHistory builds three releases with bug fixes in between:
//
//	day 1  Initial import            tag 1.0.0 (lightweight)
//	day 2  Fix crash in core
//	day 3  Add util                  tag 1.1.0 (annotated, tagged day 4), tag 1.1.1
//	day 5  Fix bug in util (#12)
//	day 6  Refactor core
//	day 7  Regression fix for setup  tag 2.0.0 (annotated, tagged day 8)
//	day 9  fix typo after release
func releaseHistory(t *testing.T) *fixtureRepo {
	t.Helper()
	f := newFixtureRepo(t)

	c1 := f.commit("Initial import", day(1), map[string]string{
		"README.md":   "# demo\n",
		"setup.py":    "from setuptools import setup\nsetup()\n",
		"pkg/core.py": "def run():\n    return 1\n",
		"tests/tc.py": "def test_run():\n    assert True\n",
	})
	f.lightweightTag("1.0.0", c1)

	f.commit("Fix crash in core", day(2), map[string]string{
		"pkg/core.py": "def run():\n    if True:\n        return 2\n    return 1\n",
	})

	c3 := f.commit("Add util", day(3), map[string]string{
		"pkg/util.py": "def helper(a, b):\n    return a + b\n",
	})
	f.annotatedTag("1.1.0", c3, day(4).Add(-3*time.Hour))
	f.lightweightTag("1.1.1", c3)
	f.lightweightTag("nightly", c3)

	f.commit("Fix bug in util (#12)\n\nHandle None operands.", day(5), map[string]string{
		"pkg/util.py": "def helper(a, b):\n    if a is None:\n        return b\n    return a + b\n",
		"README.md":   "# demo\n\nUsage notes.\n",
	})

	f.commit("Refactor core", day(6), map[string]string{
		"pkg/core.py": "def run():\n    return 2\n",
	})

	c6 := f.commit("Regression fix for setup", day(7), map[string]string{
		"setup.py": "from setuptools import setup\nsetup(name=\"demo\")\n",
	})
	f.annotatedTag("2.0.0", c6, day(8))

	f.commit("fix typo after release", day(9), map[string]string{
		"pkg/core.py": "def run():\n    return 3\n",
	})

	return f
}

func openFixture(t *testing.T, f *fixtureRepo) *Repository {
	t.Helper()
	repo, err := Open(f.dir)
	require.NoError(t, err)
	return repo
}

// =============================================================================
// Tests
// =============================================================================

func TestOpen_NotARepository(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestIsNonPatchRelease(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^([1-9]\d*)\.(\d+)\.(\d+)$`)
	tests := []struct {
		tag  string
		want bool
	}{
		{"1.0.0", true},
		{"1.5.0", true},
		{"12.10.00", true},
		{"1.5.1", false},
		{"0.9.0", false},
		{"v1.0.0", false},
		{"1.0.0rc1", false},
		{"1.0", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isNonPatchRelease(pattern, tt.tag), tt.tag)
	}

	assert.True(t, isNonPatchRelease(regexp.MustCompile(`^release-`), "release-7"))
}

func TestReleases(t *testing.T) {
	t.Parallel()

	f := releaseHistory(t)
	repo := openFixture(t, f)

	releases, err := repo.Releases(`^([1-9]\d*)\.(\d+)\.(\d+)$`)
	require.NoError(t, err)
	require.Len(t, releases, 3)

	assert.Equal(t, "2.0.0", releases[0].Tag)
	assert.True(t, releases[0].Date.Equal(day(8)), "annotated tag dated by tagger")

	assert.Equal(t, "1.1.0", releases[1].Tag)
	assert.True(t, releases[1].Date.Equal(day(4).Add(-3*time.Hour)))

	assert.Equal(t, "1.0.0", releases[2].Tag)
	assert.True(t, releases[2].Date.Equal(day(1)), "lightweight tag dated by committer")
	assert.Len(t, releases[2].Commit, 40)
}

func TestReleases_InvalidPattern(t *testing.T) {
	t.Parallel()

	repo := openFixture(t, newFixtureRepo(t))

	_, err := repo.Releases("")
	assert.ErrorIs(t, err, ErrInvalidTagPattern)

	_, err = repo.Releases("([")
	assert.ErrorContains(t, err, "invalid tag pattern")
}

func TestTimeline(t *testing.T) {
	t.Parallel()

	releases := []Release{
		{Tag: "3.0.0", Date: time.Date(2024, 5, 20, 23, 30, 0, 0, time.UTC)},
		{Tag: "2.0.0", Date: day(15)},
		{Tag: "1.0.0", Date: time.Date(2024, 1, 2, 0, 15, 0, 0, time.UTC)},
	}

	w, err := Timeline(releases, 2)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", w.Target.Tag)
	assert.Equal(t, "3.0.0", w.Latest.Tag)
	assert.Equal(t, "2024-01-02", w.StartDate())
	assert.Equal(t, "2024-05-20", w.EndDate())
	assert.True(t, w.Since.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Until.After(releases[0].Date))
	assert.True(t, w.Until.Before(time.Date(2024, 5, 21, 0, 0, 0, 0, time.UTC)))

	w, err = Timeline(releases, 0)
	require.NoError(t, err)
	assert.Equal(t, w.StartDate(), w.EndDate())
}

func TestTimeline_NotEnoughReleases(t *testing.T) {
	t.Parallel()

	_, err := Timeline([]Release{{Tag: "2.0.0"}, {Tag: "1.0.0"}}, 2)
	assert.ErrorIs(t, err, ErrNotEnoughReleases)

	_, err = Timeline(nil, 0)
	assert.ErrorIs(t, err, ErrNotEnoughReleases)

	_, err = Timeline([]Release{{Tag: "1.0.0"}}, -1)
	assert.Error(t, err)
}

func TestBugFixCommits(t *testing.T) {
	t.Parallel()

	f := releaseHistory(t)
	repo := openFixture(t, f)

	releases, err := repo.Releases(`^([1-9]\d*)\.(\d+)\.(\d+)$`)
	require.NoError(t, err)
	w, err := Timeline(releases, 2)
	require.NoError(t, err)

	commits, err := repo.BugFixCommits(w.Since, w.Until, defaultBugfixPattern)
	require.NoError(t, err)
	require.Len(t, commits, 3)

	assert.Equal(t, "Regression fix for setup", commits[0].Subject)
	assert.Equal(t, []string{"setup.py"}, commits[0].Files)

	assert.Equal(t, "Fix bug in util (#12)", commits[1].Subject)
	assert.ElementsMatch(t, []string{"README.md", "pkg/util.py"}, commits[1].Files)

	assert.Equal(t, "Fix crash in core", commits[2].Subject)
	assert.Equal(t, []string{"pkg/core.py"}, commits[2].Files)
	assert.True(t, commits[2].When.Equal(day(2)))
}

func TestBugFixCommits_InvalidPattern(t *testing.T) {
	t.Parallel()

	repo := openFixture(t, releaseHistory(t))

	_, err := repo.BugFixCommits(day(1), day(9), "")
	assert.ErrorIs(t, err, ErrInvalidBugfixRegex)

	_, err = repo.BugFixCommits(day(1), day(9), "(")
	assert.ErrorContains(t, err, "invalid bug-fix pattern")
}

func TestBuggyFiles(t *testing.T) {
	t.Parallel()

	commits := []Commit{
		{Files: []string{"setup.py", "docs/index.rst"}},
		{Files: []string{"pkg/util.py", "README.md"}},
		{Files: []string{"pkg/util.py", "pkg/native.pyx"}},
	}

	assert.Equal(t, []string{"pkg/util.py", "setup.py"}, BuggyFiles(commits, []string{".py"}))
	assert.Equal(t, []string{"pkg/native.pyx", "pkg/util.py", "setup.py"}, BuggyFiles(commits, []string{".py", ".pyx"}))
	assert.Empty(t, BuggyFiles(nil, []string{".py"}))
}

func TestTreeSource(t *testing.T) {
	t.Parallel()

	repo := openFixture(t, releaseHistory(t))
	matcher, err := scanner.NewMatcher([]string{"**/*.py"}, nil)
	require.NoError(t, err)

	source, err := repo.TreeSource("1.1.0", matcher)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", source.Tag())

	files, err := source.Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"pkg/core.py", "pkg/util.py", "setup.py", "tests/tc.py"}, files)

	content, err := source.ReadFile("pkg/core.py")
	require.NoError(t, err)
	assert.Equal(t, "def run():\n    if True:\n        return 2\n    return 1\n", string(content))

	_, err = source.ReadFile("pkg/missing.py")
	assert.Error(t, err)

	all, err := repo.TreeSource("1.0.0", nil)
	require.NoError(t, err)
	files, err = all.Files(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "pkg/core.py", "setup.py", "tests/tc.py"}, files)
}

func TestTreeSource_UnknownTag(t *testing.T) {
	t.Parallel()

	repo := openFixture(t, releaseHistory(t))

	_, err := repo.TreeSource("9.9.9", nil)
	assert.ErrorIs(t, err, ErrReleaseNotFound)
}

func TestTreeSource_ScanAndLabel(t *testing.T) {
	t.Parallel()

	f := releaseHistory(t)
	repo := openFixture(t, f)

	releases, err := repo.Releases(`^([1-9]\d*)\.(\d+)\.(\d+)$`)
	require.NoError(t, err)
	w, err := Timeline(releases, 2)
	require.NoError(t, err)
	commits, err := repo.BugFixCommits(w.Since, w.Until, defaultBugfixPattern)
	require.NoError(t, err)
	buggy := BuggyFiles(commits, []string{".py"})

	matcher, err := scanner.NewMatcher([]string{"**/*.py"}, nil)
	require.NoError(t, err)
	source, err := repo.TreeSource(w.Target.Tag, matcher)
	require.NoError(t, err)

	result, err := scanner.New(scanner.WithWorkers(2)).Scan(context.Background(), source)
	require.NoError(t, err)
	require.Empty(t, result.Skipped)

	labeled := metrics.Label(result.Records, metrics.PathSet(buggy))
	got := make(map[string]bool, len(labeled))
	for _, r := range labeled {
		got[r.File] = r.BugLabel
	}
	assert.Equal(t, map[string]bool{
		"pkg/core.py": true,
		"setup.py":    true,
		"tests/tc.py": false,
	}, got)
}
