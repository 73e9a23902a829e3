package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/confluence/internal/core"
)

func backends(t *testing.T) map[string]Storage {
	fs, err := NewLocalFS(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{"local": fs, "memory": NewMemory()}
}

func TestStorage_WriteRead(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Write(ctx, "bars/BTCUSDT/1h/a.csv", []byte("v1")))
			require.NoError(t, s.Write(ctx, "bars/BTCUSDT/1h/a.csv", []byte("v2")))

			got, err := s.Read(ctx, "bars/BTCUSDT/1h/a.csv")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))
		})
	}
}

func TestStorage_ReadMissing(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Read(context.Background(), "nope.csv")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStorage_ExistsDelete(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ok, err := s.Exists(ctx, "x.txt")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Write(ctx, "x.txt", []byte("data")))
			ok, _ = s.Exists(ctx, "x.txt")
			assert.True(t, ok)

			require.NoError(t, s.Delete(ctx, "x.txt"))
			ok, _ = s.Exists(ctx, "x.txt")
			assert.False(t, ok)

			// deleting twice is fine
			assert.NoError(t, s.Delete(ctx, "x.txt"))
		})
	}
}

func TestStorage_List(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, p := range []string{"bars/b/2.csv", "bars/a/1.csv", "other/3.csv"} {
				require.NoError(t, s.Write(ctx, p, []byte("x")))
			}

			all, err := s.List(ctx, "")
			require.NoError(t, err)
			assert.Equal(t, []string{"bars/a/1.csv", "bars/b/2.csv", "other/3.csv"}, all)

			bars, err := s.List(ctx, "bars")
			require.NoError(t, err)
			assert.Equal(t, []string{"bars/a/1.csv", "bars/b/2.csv"}, bars)

			none, err := s.List(ctx, "missing")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStorage_RejectsEscape(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Error(t, s.Write(ctx, "../outside.txt", []byte("x")))
			assert.Error(t, s.Write(ctx, "", []byte("x")))
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = New(Config{Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalFS{}, s)

	_, err = New(Config{Backend: "local"})
	assert.ErrorIs(t, err, core.ErrConfigMissing)

	_, err = New(Config{Backend: "tape"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}
