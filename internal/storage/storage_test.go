package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/justsurfingit/ats-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)

	key := ResumeKey("42", ".PDF")
	require.NoError(t, s.Put(ctx, key, []byte("%PDF-1.4"), "application/pdf"))

	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), got)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../etc/passwd", "/abs/path", `resumes\1\x.pdf`} {
		t.Run(key, func(t *testing.T) {
			assert.Error(t, s.Put(context.Background(), key, []byte("x"), "text/plain"))
		})
	}
}

func TestResumeKey(t *testing.T) {
	k1 := ResumeKey("inbox", "docx")
	k2 := ResumeKey("inbox", ".docx")

	assert.True(t, strings.HasPrefix(k1, "resumes/inbox/"))
	assert.True(t, strings.HasSuffix(k1, ".docx"))
	assert.NotEqual(t, k1, k2)
	assert.NoError(t, validKey(k1))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Backend: "ftp"})
	assert.Error(t, err)
}

func TestNew_Local(t *testing.T) {
	s, err := New(context.Background(), config.StorageConfig{Backend: BackendLocal, LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, s.Backend())
}
