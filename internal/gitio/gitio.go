// Package gitio reads commit histories and per-file diffs using go-git.
package gitio

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	fdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ChangeType tells how a commit touched a file.
type ChangeType string

const (
	Added    ChangeType = "add"
	Modified ChangeType = "modify"
	Deleted  ChangeType = "delete"
)

// Patch is the change of one file in one commit.
type Patch struct {
	Path       string
	CommitHash string
	ParentHash string
	Change     ChangeType
	// Diff has one line per line of the old and new file, each starting
	// with "+", "-" or a space. There are no hunk headers.
	Diff string
}

// Commit is a non-merge commit together with its accepted patches.
type Commit struct {
	Hash    string
	Parent  string
	Author  string
	When    time.Time
	Message string
	Patches []Patch
}

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing Git repository.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// OpenOrClone opens the repository at dir, cloning url into it first if
// dir holds no repository yet.
func OpenOrClone(ctx context.Context, dir, url string) (*Repository, error) {
	repo, err := git.PlainOpen(dir)
	if err == nil {
		return &Repository{repo: repo, path: dir}, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) || url == "" {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	repo, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	return &Repository{repo: repo, path: dir}, nil
}

// Path returns the directory the repository was opened from.
func (r *Repository) Path() string { return r.path }

// ResolveRef resolves a branch name, tag or commit hash to a commit. An
// empty name resolves HEAD.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	if refName == "" {
		head, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolving HEAD: %w", err)
		}
		return r.commit(head.Hash())
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(refName),
		plumbing.NewTagReferenceName(refName),
	} {
		if ref, err := r.repo.Reference(name, true); err == nil {
			return r.commit(ref.Hash())
		}
	}
	if !plumbing.IsHash(refName) {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit hash", refName)
	}
	return r.commit(plumbing.NewHash(refName))
}

func (r *Repository) commit(h plumbing.Hash) (*object.Commit, error) {
	c, err := r.repo.CommitObject(h)
	if err != nil {
		// Annotated tags point to tag objects.
		if tag, terr := r.repo.TagObject(h); terr == nil {
			return tag.Commit()
		}
		return nil, fmt.Errorf("getting commit %s: %w", h, err)
	}
	return c, nil
}

// FirstParentHistory yields start and its first-parent ancestors, newest
// first.
func FirstParentHistory(start *object.Commit) iter.Seq2[*object.Commit, error] {
	return func(yield func(*object.Commit, error) bool) {
		for c := start; c != nil; {
			if !yield(c, nil) {
				return
			}
			if c.NumParents() == 0 {
				return
			}
			parent, err := c.Parent(0)
			if err != nil {
				yield(nil, fmt.Errorf("getting parent of %s: %w", c.Hash, err))
				return
			}
			c = parent
		}
	}
}

// Commits yields the mineable commits reachable by first parents from ref:
// commits with exactly one parent. Merges and the root commit are skipped.
// match selects the file paths whose patches are kept. limit bounds the
// number of yielded commits, 0 for no bound.
func (r *Repository) Commits(ref string, match func(path string) bool, limit int) iter.Seq2[*Commit, error] {
	return func(yield func(*Commit, error) bool) {
		start, err := r.ResolveRef(ref)
		if err != nil {
			yield(nil, err)
			return
		}
		n := 0
		for c, err := range FirstParentHistory(start) {
			if err != nil {
				yield(nil, err)
				return
			}
			if c.NumParents() != 1 {
				continue
			}
			mc, err := CommitPatches(c, match)
			if !yield(mc, err) || err != nil {
				return
			}
			n++
			if limit > 0 && n >= limit {
				return
			}
		}
	}
}

// CommitPatches diffs c against its first parent.
func CommitPatches(c *object.Commit, match func(path string) bool) (*Commit, error) {
	parent, err := c.Parent(0)
	if err != nil {
		return nil, fmt.Errorf("getting parent of %s: %w", c.Hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting base tree: %w", err)
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting head tree: %w", err)
	}
	changes, err := parentTree.Diff(tree)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	mc := &Commit{
		Hash:    c.Hash.String(),
		Parent:  parent.Hash.String(),
		Author:  c.Author.Name,
		When:    c.Author.When,
		Message: strings.TrimSpace(c.Message),
	}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("classifying change: %w", err)
		}
		var p Patch
		switch action {
		case merkletrie.Insert:
			p = Patch{Path: change.To.Name, Change: Added}
		case merkletrie.Delete:
			p = Patch{Path: change.From.Name, Change: Deleted}
		case merkletrie.Modify:
			p = Patch{Path: change.To.Name, Change: Modified}
		default:
			continue
		}
		if match != nil && !match(p.Path) {
			continue
		}

		patch, err := change.Patch()
		if err != nil {
			return nil, fmt.Errorf("diffing %s: %w", p.Path, err)
		}
		text, ok := fullContextDiff(patch)
		if !ok {
			continue
		}
		p.CommitHash = mc.Hash
		p.ParentHash = mc.Parent
		p.Diff = text
		mc.Patches = append(mc.Patches, p)
	}
	return mc, nil
}

// fullContextDiff renders the single file patch of one change with every
// line of both versions. Binary files are rejected.
func fullContextDiff(patch *object.Patch) (string, bool) {
	var sb strings.Builder
	for _, fp := range patch.FilePatches() {
		if fp.IsBinary() {
			return "", false
		}
		for _, chunk := range fp.Chunks() {
			var marker string
			switch chunk.Type() {
			case fdiff.Add:
				marker = "+"
			case fdiff.Delete:
				marker = "-"
			default:
				marker = " "
			}
			for _, line := range splitLines(chunk.Content()) {
				sb.WriteString(marker)
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String(), true
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
