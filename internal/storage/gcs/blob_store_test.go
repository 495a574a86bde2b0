package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	bytes.Buffer
	writeErr error
	closeErr error
	closed   bool
}

func (w *fakeWriter) Write(p []byte) (int, error) {
	if w.writeErr != nil {
		return 0, w.writeErr
	}
	return w.Buffer.Write(p)
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	var gotObject, gotType string
	store, err := newBlobStore(Config{Bucket: "audits-bucket", Prefix: "/prod/"},
		func(_ context.Context, object, contentType string) io.WriteCloser {
			gotObject, gotType = object, contentType
			return w
		})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "audits/job-1/document.json", "application/json", []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, "gs://audits-bucket/prod/audits/job-1/document.json", uri)
	require.Equal(t, "prod/audits/job-1/document.json", gotObject)
	require.Equal(t, "application/json", gotType)
	require.Equal(t, "{}", w.String())
	require.True(t, w.closed)
}

func TestPutObjectErrors(t *testing.T) {
	t.Parallel()

	_, err := newBlobStore(Config{}, nil)
	require.ErrorContains(t, err, "bucket name is required")
	_, err = New(nil, Config{Bucket: "b"})
	require.ErrorContains(t, err, "storage client is required")

	boom := errors.New("boom")
	w := &fakeWriter{writeErr: boom}
	store, err := newBlobStore(Config{Bucket: "b"}, func(context.Context, string, string) io.WriteCloser { return w })
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "", "", nil)
	require.ErrorContains(t, err, "path is required")

	_, err = store.PutObject(context.Background(), "x.json", "", []byte("x"))
	require.ErrorIs(t, err, boom)
	require.True(t, w.closed)

	w.writeErr, w.closeErr = nil, boom
	_, err = store.PutObject(context.Background(), "x.json", "", []byte("x"))
	require.ErrorContains(t, err, "close writer")
}
