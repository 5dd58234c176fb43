package checkout

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const testBranch = "master"

const newFilePatch = `diff --git a/hello.txt b/hello.txt
new file mode 100644
--- /dev/null
+++ b/hello.txt
@@ -0,0 +1 @@
+hello
`

// initUpstream creates a bare repository with one commit on testBranch and
// returns its path and the revision of the commit.
func initUpstream(t *testing.T) (string, string) {
	t.Helper()

	seedDir := filepath.Join(t.TempDir(), "seed")
	seed, err := git.PlainInit(seedDir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(seedDir, "README"), []byte("readme\n"), 0o600))

	wt, err := seed.Worktree()
	require.NoError(t, err)

	_, err = wt.Add("README")
	require.NoError(t, err)

	sig := object.Signature{Name: "seed", Email: "seed@example.com", When: time.Now()}
	hash, err := wt.Commit("initial commit", &git.CommitOptions{Author: &sig, Committer: &sig})
	require.NoError(t, err)

	require.NoError(t, seed.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName(testBranch), hash),
	))

	upstreamDir := filepath.Join(t.TempDir(), "upstream.git")
	_, err = git.PlainClone(upstreamDir, true, &git.CloneOptions{
		URL:           seedDir,
		ReferenceName: plumbing.NewBranchReferenceName(testBranch),
	})
	require.NoError(t, err)

	return upstreamDir, hash.String()
}

func openTestCheckout(t *testing.T, upstream string, maxBehind int) *Git {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not found")
	}

	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	g, err := Open(context.Background(), &Options{
		URL:                upstream,
		Branch:             testBranch,
		Path:               filepath.Join(t.TempDir(), "work"),
		CommitterName:      "Commit Queue",
		CommitterEmail:     "cq@example.com",
		MaxRevisionsBehind: maxBehind,
	})
	require.NoError(t, err)

	return g
}

func upstreamHead(t *testing.T, upstream string) string {
	t.Helper()

	repo, err := git.PlainOpen(upstream)
	require.NoError(t, err)

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(testBranch), true)
	require.NoError(t, err)

	return ref.Hash().String()
}

func TestLandPatch(t *testing.T) {
	upstream, initialRev := initUpstream(t)
	g := openTestCheckout(t, upstream, 10)
	ctx := context.Background()

	rev, err := g.Revision(ctx)
	require.NoError(t, err)
	assert.Equal(t, initialRev, rev)

	require.NoError(t, g.Sync(ctx))
	require.NoError(t, g.Apply(ctx, "", []byte(newFilePatch)))

	content, err := os.ReadFile(filepath.Join(g.path, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	newRev, err := g.Commit(ctx, "add hello\n\nReview URL: https://review.example.com/1\n", "dev@example.com")
	require.NoError(t, err)
	require.NoError(t, g.Push(ctx))

	assert.Equal(t, newRev, upstreamHead(t, upstream))

	commit, err := g.repo.CommitObject(plumbing.NewHash(newRev))
	require.NoError(t, err)
	assert.Equal(t, "dev@example.com", commit.Author.Email)
	assert.Equal(t, "cq@example.com", commit.Committer.Email)
	assert.Contains(t, commit.Message, "Review URL: https://review.example.com/1")
}

func TestApplyInSubdirectory(t *testing.T) {
	upstream, _ := initUpstream(t)
	g := openTestCheckout(t, upstream, 10)
	ctx := context.Background()

	require.NoError(t, g.Sync(ctx))
	require.NoError(t, g.Apply(ctx, "sub/dir", []byte(newFilePatch)))

	_, err := os.Stat(filepath.Join(g.path, "sub", "dir", "hello.txt"))
	assert.NoError(t, err)
}

func TestSyncRemovesLocalChanges(t *testing.T) {
	upstream, _ := initUpstream(t)
	g := openTestCheckout(t, upstream, 10)
	ctx := context.Background()

	require.NoError(t, g.Sync(ctx))
	require.NoError(t, g.Apply(ctx, "", []byte(newFilePatch)))
	require.NoError(t, os.WriteFile(filepath.Join(g.path, "README"), []byte("changed\n"), 0o600))

	require.NoError(t, g.Sync(ctx))

	_, err := os.Stat(filepath.Join(g.path, "hello.txt"))
	assert.True(t, os.IsNotExist(err))

	content, err := os.ReadFile(filepath.Join(g.path, "README"))
	require.NoError(t, err)
	assert.Equal(t, "readme\n", string(content))
}

func TestApplyInvalidPatch(t *testing.T) {
	upstream, _ := initUpstream(t)
	g := openTestCheckout(t, upstream, 10)
	ctx := context.Background()

	require.NoError(t, g.Sync(ctx))
	assert.Error(t, g.Apply(ctx, "", []byte("this is not a patch\n")))
}

func TestIsRelevant(t *testing.T) {
	upstream, initialRev := initUpstream(t)
	g := openTestCheckout(t, upstream, 1)
	ctx := context.Background()

	relevant, err := g.IsRelevant(ctx, initialRev)
	require.NoError(t, err)
	assert.True(t, relevant)

	relevant, err = g.IsRelevant(ctx, initialRev[:10])
	require.NoError(t, err)
	assert.True(t, relevant)

	relevant, err = g.IsRelevant(ctx, "")
	require.NoError(t, err)
	assert.True(t, relevant)

	for i, name := range []string{"a.txt", "b.txt"} {
		require.NoError(t, g.Sync(ctx))
		require.NoError(t, os.WriteFile(filepath.Join(g.path, name), []byte(name), 0o600))
		_, err := g.Commit(ctx, name, "dev@example.com")
		require.NoError(t, err)
		require.NoError(t, g.Push(ctx))

		_, err = g.Revision(ctx)
		require.NoError(t, err)

		relevant, err = g.IsRelevant(ctx, initialRev)
		require.NoError(t, err)
		assert.Equal(t, i == 0, relevant, "after %d commits", i+1)
	}

	relevant, err = g.IsRelevant(ctx, "0123456789abcdef0123456789abcdef01234567")
	require.NoError(t, err)
	assert.False(t, relevant)
}

func TestDryGitDoesNotPush(t *testing.T) {
	upstream, initialRev := initUpstream(t)
	g := NewDryGit(openTestCheckout(t, upstream, 10))
	ctx := context.Background()

	require.NoError(t, g.Sync(ctx))
	require.NoError(t, g.Apply(ctx, "", []byte(newFilePatch)))
	_, err := g.Commit(ctx, "add hello", "dev@example.com")
	require.NoError(t, err)
	require.NoError(t, g.Push(ctx))

	assert.Equal(t, initialRev, upstreamHead(t, upstream))
}
