package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseFileStore(t *testing.T, fs FileStore) {
	t.Helper()
	ctx := context.Background()

	ok, err := fs.Exists(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = fs.Read(ctx, "exports/a.xlsx")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	w, err := fs.Write(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	_, err = io.Copy(w, strings.NewReader("workbook"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	ok, err = fs.Exists(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	assert.True(t, ok)

	r, err := fs.Read(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "workbook", string(data))

	require.NoError(t, fs.Delete(ctx, "exports/a.xlsx"))
	require.NoError(t, fs.Delete(ctx, "exports/a.xlsx"))

	ok, err = fs.Exists(ctx, "exports/a.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)
}

func exerciseAbort(t *testing.T, fs FileStore) {
	t.Helper()
	ctx := context.Background()
	cause := errors.New("workbook failed")

	w, err := fs.Write(ctx, "exports/new.xlsx")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, Abort(w, cause))

	ok, err := fs.Exists(ctx, "exports/new.xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	w, err = fs.Write(ctx, "exports/kept.xlsx")
	require.NoError(t, err)
	_, err = w.Write([]byte("complete"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w, err = fs.Write(ctx, "exports/kept.xlsx")
	require.NoError(t, err)
	_, err = w.Write([]byte("trunc"))
	require.NoError(t, err)
	require.NoError(t, Abort(w, cause))

	r, err := fs.Read(ctx, "exports/kept.xlsx")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "complete", string(data))
}

type closeCounter struct {
	closed int
}

func (c *closeCounter) Write(p []byte) (int, error) { return len(p), nil }
func (c *closeCounter) Close() error                { c.closed++; return nil }

func TestAbortFallsBackToClose(t *testing.T) {
	w := &closeCounter{}
	require.NoError(t, Abort(w, errors.New("boom")))
	assert.Equal(t, 1, w.closed)
}

func TestLocal(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	exerciseFileStore(t, l)
	assert.True(t, strings.HasSuffix(l.Location("x/y.xlsx"), "x/y.xlsx"))
}

func TestLocalAbort(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	exerciseAbort(t, l)

	entries, err := os.ReadDir(filepath.Join(dir, "exports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept.xlsx", entries[0].Name())
}

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "results")

	exerciseFileStore(t, store)
	assert.Equal(t, "s3://bucket/results/a.xlsx", store.Location("a.xlsx"))
}

func TestS3StoreKeyPrefix(t *testing.T) {
	mock := newMockS3()
	ctx := context.Background()

	w, err := NewS3(mock, "bucket", "results").Write(ctx, "a.xlsx")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := mock.objects["results/a.xlsx"]
	assert.True(t, ok)

	w, err = NewS3(mock, "bucket", "").Write(ctx, "b.xlsx")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, ok = mock.objects["b.xlsx"]
	assert.True(t, ok)
}

func TestS3StoreAbort(t *testing.T) {
	mock := newMockS3()

	exerciseAbort(t, NewS3(mock, "bucket", ""))

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Len(t, mock.objects, 1)
	assert.Equal(t, "complete", string(mock.objects["exports/kept.xlsx"]))
}

func TestS3StoreUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")

	w, err := NewS3(mock, "bucket", "").Write(context.Background(), "a.xlsx")
	require.NoError(t, err)
	_, _ = w.Write([]byte("data"))
	assert.EqualError(t, w.Close(), "access denied")
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(S3ClientOptions{Region: "us-east-1", Endpoint: "http://localhost:9000"})
	assert.NotNil(t, client)
}
