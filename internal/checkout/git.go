// Package checkout maintains the local working copy commits are landed
// from.
package checkout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"

	"github.com/simplesurance/commitqueue/internal/logfields"
)

const loggerName = "checkout"

const (
	DefRemote           = "origin"
	DefMaxRevisionsBack = 100
)

// minHashPrefixLen is the minimum length of an abbreviated revision that is
// compared with commit hashes.
const minHashPrefixLen = 7

type Options struct {
	// URL of the upstream repository.
	URL    string
	Branch string
	// Path is the directory of the working copy. The repository is cloned
	// into it if it does not exist.
	Path string
	// Username and Password are used for HTTP basic authentication when
	// Username is not empty.
	Username string
	Password string

	CommitterName  string
	CommitterEmail string

	// MaxRevisionsBehind is the number of upstream commits a revision
	// may be behind the latest upstream revision to be relevant.
	MaxRevisionsBehind int
}

// Git is a git working copy of a branch of an upstream repository.
type Git struct {
	repo       *git.Repository
	path       string
	branch     plumbing.ReferenceName
	remoteRef  plumbing.ReferenceName
	auth       transport.AuthMethod
	committer  object.Signature
	maxBehind  int
	logger     *zap.Logger
	lock       sync.Mutex
	gitBinPath string
}

// Open opens the working copy at opts.Path, if it does not exist the
// repository is cloned.
func Open(ctx context.Context, opts *Options) (*Git, error) {
	if opts.Branch == "" {
		return nil, errors.New("branch is empty")
	}

	gitBin, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git executable not found: %w", err)
	}

	g := Git{
		path:      opts.Path,
		branch:    plumbing.NewBranchReferenceName(opts.Branch),
		remoteRef: plumbing.NewRemoteReferenceName(DefRemote, opts.Branch),
		committer: object.Signature{
			Name:  opts.CommitterName,
			Email: opts.CommitterEmail,
		},
		maxBehind:  opts.MaxRevisionsBehind,
		logger:     zap.L().Named(loggerName).With(zap.String("scm.branch", opts.Branch)),
		gitBinPath: gitBin,
	}

	if g.maxBehind <= 0 {
		g.maxBehind = DefMaxRevisionsBack
	}

	if opts.Username != "" {
		g.auth = &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}
	}

	repo, err := git.PlainOpen(opts.Path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		g.logger.Info(
			"cloning repository",
			zap.String("scm.url", opts.URL),
			zap.String("scm.path", opts.Path),
			logfields.Event("cloning_repository"),
		)

		repo, err = git.PlainCloneContext(ctx, opts.Path, false, &git.CloneOptions{
			URL:           opts.URL,
			Auth:          g.auth,
			RemoteName:    DefRemote,
			ReferenceName: g.branch,
			SingleBranch:  true,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository %s failed: %w", opts.Path, err)
	}

	g.repo = repo

	return &g, nil
}

func (g *Git) fetch(ctx context.Context) error {
	err := g.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: DefRemote,
		Auth:       g.auth,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("+%s:%s", g.branch, g.remoteRef)),
		},
		Force: true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("fetching %s failed: %w", g.branch.Short(), err)
	}

	return nil
}

func (g *Git) upstreamHead() (plumbing.Hash, error) {
	ref, err := g.repo.Reference(g.remoteRef, true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving %s failed: %w", g.remoteRef, err)
	}

	return ref.Hash(), nil
}

// Sync fetches the upstream branch and resets the working copy to it.
// Local changes and untracked files are removed.
func (g *Git) Sync(ctx context.Context) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.fetch(ctx); err != nil {
		return err
	}

	head, err := g.upstreamHead()
	if err != nil {
		return err
	}

	if err := g.repo.Storer.SetReference(plumbing.NewHashReference(g.branch, head)); err != nil {
		return fmt.Errorf("updating %s failed: %w", g.branch, err)
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return err
	}

	if err := wt.Checkout(&git.CheckoutOptions{Branch: g.branch, Force: true}); err != nil {
		return fmt.Errorf("checking out %s failed: %w", g.branch.Short(), err)
	}

	if err := wt.Reset(&git.ResetOptions{Commit: head, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting working copy failed: %w", err)
	}

	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("removing untracked files failed: %w", err)
	}

	g.logger.Debug(
		"working copy synced",
		logfields.Revision(head.String()),
		logfields.Event("checkout_synced"),
	)

	return nil
}

// Revision fetches the upstream branch and returns its latest revision.
func (g *Git) Revision(ctx context.Context) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	if err := g.fetch(ctx); err != nil {
		return "", err
	}

	head, err := g.upstreamHead()
	if err != nil {
		return "", err
	}

	return head.String(), nil
}

func revisionMatches(h plumbing.Hash, rev string) bool {
	if len(rev) < minHashPrefixLen {
		return false
	}

	return strings.HasPrefix(h.String(), strings.ToLower(rev))
}

// IsRelevant returns true if rev is one of the last MaxRevisionsBehind
// commits of the upstream branch, as known by the last fetch.
// An empty revision is relevant, it can not be compared.
func (g *Git) IsRelevant(_ context.Context, rev string) (bool, error) {
	if rev == "" {
		return true, nil
	}

	g.lock.Lock()
	defer g.lock.Unlock()

	head, err := g.upstreamHead()
	if err != nil {
		return false, err
	}

	iter, err := g.repo.Log(&git.LogOptions{From: head})
	if err != nil {
		return false, fmt.Errorf("reading history failed: %w", err)
	}
	defer iter.Close()

	var found bool
	var cnt int
	err = iter.ForEach(func(c *object.Commit) error {
		if revisionMatches(c.Hash, rev) {
			found = true
			return storer.ErrStop
		}

		cnt++
		if cnt > g.maxBehind {
			return storer.ErrStop
		}

		return nil
	})
	if err != nil {
		return false, fmt.Errorf("reading history failed: %w", err)
	}

	return found, nil
}

// Apply applies the patch in the directory relPath of the working copy.
func (g *Git) Apply(ctx context.Context, relPath string, patch []byte) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	args := []string{"apply", "-p1", "--whitespace=nowarn"}
	if relPath != "" {
		args = append(args, "--directory="+filepath.ToSlash(relPath))
	}

	var stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, g.gitBinPath, args...)
	cmd.Dir = g.path
	cmd.Stdin = bytes.NewReader(patch)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git apply failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return nil
}

// Commit commits all changes in the working copy and returns the revision.
func (g *Git) Commit(_ context.Context, message, author string) (string, error) {
	g.lock.Lock()
	defer g.lock.Unlock()

	wt, err := g.repo.Worktree()
	if err != nil {
		return "", err
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("staging changes failed: %w", err)
	}

	now := time.Now()
	committer := g.committer
	committer.When = now

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: author,
			When:  now,
		},
		Committer: &committer,
	})
	if err != nil {
		return "", fmt.Errorf("committing failed: %w", err)
	}

	return hash.String(), nil
}

// Push pushes the local branch to the upstream repository.
func (g *Git) Push(ctx context.Context) error {
	g.lock.Lock()
	defer g.lock.Unlock()

	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: DefRemote,
		Auth:       g.auth,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("%s:%s", g.branch, g.branch)),
		},
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pushing %s failed: %w", g.branch.Short(), err)
	}

	return nil
}
