// Package git implements provider.GitBackend over go-git/v5, giving the
// Knowledge Store an append-only commit history without shelling out to
// the git binary. Grounded on go-git/v5's plumbing/worktree API as wired
// in the pack's git-backed knowledge-store reference
// (other_examples/manifests/fyrsmithlabs-contextd/go.mod), since no
// example repo in this pack ships a full go-git call site; the calling
// conventions below follow go-git's documented PlainInit/PlainOpen,
// Worktree.Add, and Worktree.Commit surface.
package git

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/mkc-dev/mkc/internal/mkcerr"
	"github.com/mkc-dev/mkc/internal/provider"
)

// Backend is a go-git-backed provider.GitBackend. Each repoPath is an
// independent repository; the Tenant Router (internal/tenant) is
// responsible for choosing a path per tenant so that no single
// repository mixes tenants.
type Backend struct{}

var _ provider.GitBackend = (*Backend)(nil)

func New() *Backend { return &Backend{} }

// EnsureRepo opens repoPath as a git repository, initializing one if it
// does not exist yet.
func (b *Backend) EnsureRepo(ctx context.Context, repoPath string) error {
	if _, err := git.PlainOpen(repoPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(repoPath, 0755); err != nil {
		return mkcerr.Wrap(mkcerr.GitError, "git.EnsureRepo", "", err)
	}
	if _, err := git.PlainInit(repoPath, false); err != nil {
		return mkcerr.Wrap(mkcerr.GitError, "git.EnsureRepo", "", err)
	}
	return nil
}

// Commit writes files (paths relative to repoPath) and commits them in
// one append-only commit, returning the new commit hash.
func (b *Backend) Commit(ctx context.Context, repoPath string, files map[string][]byte, message, authorName, authorEmail string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
	}

	// Write in sorted path order so repeated runs over the same content
	// produce a deterministic tree, matching the evaluation-order
	// determinism constraint the rest of the store holds itself to.
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		full := filepath.Join(repoPath, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
		}
		if err := os.WriteFile(full, files[rel], 0644); err != nil {
			return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
		}
		if _, err := wt.Add(rel); err != nil {
			return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  commitTime(ctx),
		},
	})
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.Commit", "", err)
	}
	return hash.String(), nil
}

// DeleteFile removes files from the worktree and commits the removal as
// a new commit; it never rewrites history.
func (b *Backend) DeleteFile(ctx context.Context, repoPath string, files []string, message, authorName, authorEmail string) (string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.DeleteFile", "", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.DeleteFile", "", err)
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, rel := range sorted {
		if _, err := wt.Remove(rel); err != nil {
			return "", mkcerr.Wrap(mkcerr.GitError, "git.DeleteFile", "", err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: authorName, Email: authorEmail, When: commitTime(ctx)},
	})
	if err != nil {
		return "", mkcerr.Wrap(mkcerr.GitError, "git.DeleteFile", "", err)
	}
	return hash.String(), nil
}

// ReadFile reads relPath as of HEAD.
func (b *Backend) ReadFile(ctx context.Context, repoPath, relPath string) ([]byte, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	f, err := tree.File(relPath)
	if err != nil {
		if err == object.ErrFileNotFound {
			return nil, mkcerr.New(mkcerr.ItemNotFound, "git.ReadFile", fmt.Sprintf("%s not found at HEAD", relPath))
		}
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	contents, err := f.Contents()
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ReadFile", "", err)
	}
	return []byte(contents), nil
}

// Log returns up to maxEntries most-recent commits, newest first.
func (b *Backend) Log(ctx context.Context, repoPath string, maxEntries int) ([]provider.CommitInfo, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.Log", "", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.Log", "", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.Log", "", err)
	}
	defer iter.Close()

	var out []provider.CommitInfo
	err = iter.ForEach(func(c *object.Commit) error {
		if maxEntries > 0 && len(out) >= maxEntries {
			return storer.ErrStop
		}
		out = append(out, provider.CommitInfo{Hash: c.Hash.String(), Message: c.Message})
		return nil
	})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.Log", "", err)
	}
	return out, nil
}

// ListFiles returns every file path (relative to repoPath) tracked in
// HEAD's tree, used by the Knowledge Store to rebuild its manifest by
// scanning item files (spec §4.2 "Manifest").
func (b *Backend) ListFiles(ctx context.Context, repoPath string) ([]string, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ListFiles", "", err)
	}
	head, err := repo.Head()
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return nil, nil
		}
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ListFiles", "", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ListFiles", "", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.GitError, "git.ListFiles", "", err)
	}

	var out []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkcerr.Wrap(mkcerr.GitError, "git.ListFiles", "", err)
		}
		if !entry.Mode.IsFile() {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func commitTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(commitTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

type commitTimeKey struct{}

// WithCommitTime returns a context carrying a fixed commit timestamp, for
// deterministic tests.
func WithCommitTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, commitTimeKey{}, t)
}
