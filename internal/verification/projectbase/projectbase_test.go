package projectbase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/simplesurance/commitqueue/internal/verification"
)

func TestVerifyMatchingBase(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`svn://svn\.example\.org/repo/trunk`}, "")
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, BaseURL: "svn://svn.example.org/repo/trunk/src/base"}
	require.NoError(t, v.Verify(context.Background(), &pc))

	assert.Equal(t, verification.Succeeded, pc.Get(Name).State())
	assert.Equal(t, "src/base", pc.RelPath)
}

func TestVerifyRelPathGroup(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`https://git\.example\.org/(?P<relpath>[a-z]+)\.git@main`}, "")
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, BaseURL: "https://git.example.org/tools.git@main"}
	require.NoError(t, v.Verify(context.Background(), &pc))

	assert.Equal(t, verification.Succeeded, pc.Get(Name).State())
	assert.Equal(t, "tools", pc.RelPath)
}

func TestVerifyUnknownBaseIsIgnored(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`svn://svn\.example\.org/repo/trunk`}, "")
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, BaseURL: "svn://other.example.org/repo/trunk"}
	require.NoError(t, v.Verify(context.Background(), &pc))

	rec := pc.Get(Name)
	require.NotNil(t, rec)
	assert.Equal(t, verification.Ignored, rec.State())
	assert.Contains(t, rec.WhyNot(), "is not supported")
}

func TestVerifyBaseIsAnchored(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`svn\.example\.org`}, "")
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, BaseURL: "svn://svn.example.org"}
	require.NoError(t, v.Verify(context.Background(), &pc))

	assert.Equal(t, verification.Ignored, pc.Get(Name).State())
}

func TestVerifyFilter(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`svn://svn\.example\.org/`}, `.owner | endswith("@example.org")`)
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, Owner: "dev@example.org", BaseURL: "svn://svn.example.org/trunk"}
	require.NoError(t, v.Verify(context.Background(), &pc))
	assert.Equal(t, verification.Succeeded, pc.Get(Name).State())

	pc = verification.PendingCommit{Issue: 2, Owner: "dev@elsewhere.org", BaseURL: "svn://svn.example.org/trunk"}
	require.NoError(t, v.Verify(context.Background(), &pc))
	assert.Equal(t, verification.Ignored, pc.Get(Name).State())
}

func TestVerifyFilterNonBoolResult(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	v, err := New([]string{`svn://`}, `.owner`)
	require.NoError(t, err)

	pc := verification.PendingCommit{Issue: 1, Owner: "dev@example.org", BaseURL: "svn://x"}
	assert.Error(t, v.Verify(context.Background(), &pc))
	assert.Nil(t, pc.Get(Name))
}

func TestNewInvalidArgs(t *testing.T) {
	_, err := New(nil, "")
	assert.Error(t, err)

	_, err = New([]string{"("}, "")
	assert.Error(t, err)

	_, err = New([]string{"x"}, ".[")
	assert.Error(t, err)
}
