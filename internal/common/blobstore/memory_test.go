package blobstore

import (
	"context"
	"errors"
	"testing"

	apperrors "procurement-harvester/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	b, err := m.Find(ctx, "공사.csv")
	require.NoError(t, err)
	assert.Nil(t, b)

	created, err := m.Create(ctx, "공사.csv", []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "공사.csv", created.Name)
	assert.Equal(t, int64(4), created.Size)

	found, err := m.Find(ctx, "공사.csv")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	require.NoError(t, m.Update(ctx, found.ID, []byte("a,b\n1,2\n")))
	data, err := m.Download(ctx, found.ID)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
	assert.Equal(t, 2, m.Writes())
}

func TestMemory_PutDoesNotCountAsWrite(t *testing.T) {
	m := NewMemory()
	m.Put("x.csv", []byte("1"))
	m.Put("x.csv", []byte("2"))

	got, ok := m.Get("x.csv")
	require.True(t, ok)
	assert.Equal(t, "2", string(got))
	assert.Equal(t, 0, m.Writes())
	assert.Equal(t, []string{"x.csv"}, m.Names())
}

func TestMemory_FailHook(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Put("x.csv", []byte("1"))
	m.Fail = func(op, key string) error {
		if op == "download" || op == "update" {
			return errors.New("backend unavailable")
		}
		return nil
	}

	b, err := m.Find(ctx, "x.csv")
	require.NoError(t, err)

	_, err = m.Download(ctx, b.ID)
	assert.Equal(t, apperrors.ErrCodeStoreDownloadFailed, apperrors.CodeOf(err))

	err = m.Update(ctx, b.ID, []byte("2"))
	assert.Equal(t, apperrors.ErrCodeStoreUploadFailed, apperrors.CodeOf(err))

	got, _ := m.Get("x.csv")
	assert.Equal(t, "1", string(got))
}

func TestMemory_UnknownID(t *testing.T) {
	m := NewMemory()
	_, err := m.Download(context.Background(), "nope")
	assert.Equal(t, apperrors.ErrCodeStoreDownloadFailed, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ErrCodeStoreUploadFailed, apperrors.CodeOf(m.Update(context.Background(), "nope", nil)))
}
