package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	key := UploadKey("run-1", "notes.png")
	assert.Equal(t, "uploads/run-1/notes.png", key)

	ok, err := fs.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, fs.Upload(ctx, key, []byte("png-bytes")))
	data, err := fs.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	meta, err := fs.GetMetadata(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(9), meta.Size)
	assert.Equal(t, "image/png", meta.ContentType)

	require.NoError(t, fs.Delete(ctx, key))
	require.NoError(t, fs.Delete(ctx, key))
	_, err = fs.Read(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFilesystemStorage_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../secret", "a/../../secret", "", "."} {
		_, err := fs.Read(ctx, key)
		assert.ErrorContains(t, err, "path traversal", key)
		assert.Error(t, fs.Upload(ctx, key, []byte("x")), key)
	}
}

func TestUploadKey_StripsDirectories(t *testing.T) {
	assert.Equal(t, "uploads/r/photo.jpg", UploadKey("r", "../../etc/photo.jpg"))
	assert.Equal(t, "uploads/r/photo.jpg", UploadKey("r", `C:\Users\me\photo.jpg`))
	assert.Equal(t, "uploads/r/image", UploadKey("r", ""))
}

func TestHTTPContentReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/contents/c1/download":
			io.WriteString(w, "image-bytes")
		case "/api/v1/contents/c1":
			w.WriteHeader(http.StatusOK)
		case "/api/v1/contents/c1/details":
			json.NewEncoder(w).Encode(map[string]any{"file_size": 11, "mime_type": "image/jpeg"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	cr := NewHTTPContentReader(srv.URL + "/")

	rc, err := cr.GetReaderByContentID(ctx, "c1")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "image-bytes", string(data))

	ok, err := cr.Exists(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cr.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	meta, err := cr.GetMetadata(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(11), meta.Size)
	assert.Equal(t, "image/jpeg", meta.ContentType)

	_, err = cr.GetReaderByContentID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckImage(t *testing.T) {
	cases := []struct {
		name string
		meta *Metadata
		want error
	}{
		{"no metadata", nil, nil},
		{"png", &Metadata{Size: 100, ContentType: "image/png"}, nil},
		{"params", &Metadata{Size: 100, ContentType: "Image/JPEG; q=0.9"}, nil},
		{"unknown type", &Metadata{Size: 100}, nil},
		{"octet stream", &Metadata{Size: 100, ContentType: "application/octet-stream"}, nil},
		{"pdf", &Metadata{Size: 100, ContentType: "application/pdf"}, ErrNotImage},
		{"text", &Metadata{Size: 100, ContentType: "text/plain; charset=utf-8"}, ErrNotImage},
		{"too large", &Metadata{Size: 2048, ContentType: "image/png"}, ErrImageTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckImage(tc.meta, 1024)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	// no limit configured
	assert.NoError(t, CheckImage(&Metadata{Size: 1 << 30, ContentType: "image/tiff"}, 0))
}

func TestContentReader_RejectsMalformedIDs(t *testing.T) {
	cr := NewContentReader(nil)
	ctx := context.Background()

	_, err := cr.GetReaderByContentID(ctx, "not-a-uuid")
	assert.ErrorContains(t, err, "invalid content ID")
	_, err = cr.Exists(ctx, "not-a-uuid")
	assert.ErrorContains(t, err, "invalid content ID")
	_, err = cr.GetMetadata(ctx, "")
	assert.ErrorContains(t, err, "invalid content ID")
}

func TestHTTPDerivedWriter(t *testing.T) {
	var posted map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/contents/c1/derived", r.URL.Path)
		if r.Method == http.MethodGet {
			assert.Equal(t, "study_result", r.URL.Query().Get("derivation_type"))
			json.NewEncoder(w).Encode([]derivedEntry{{DerivationType: "study_result", Variant: "study_result_v1"}})
			return
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "d1"})
	}))
	defer srv.Close()

	ctx := context.Background()
	dw := NewHTTPDerivedWriter(srv.URL)

	has, err := dw.HasDerived(ctx, "c1", "study_result", 1)
	require.NoError(t, err)
	assert.True(t, has)
	has, err = dw.HasDerived(ctx, "c1", "study_result", 2)
	require.NoError(t, err)
	assert.False(t, has)

	id, err := dw.PutDerived(ctx, "c1", "study_result", 2, strings.NewReader(`{"success":true}`), map[string]string{"mime_type": "application/json"})
	require.NoError(t, err)
	assert.Equal(t, "d1", id)
	assert.Equal(t, "study_result_v2", posted["variant"])
	assert.Equal(t, "study_result_v2.json", posted["file_name"])
	assert.Equal(t, `{"success":true}`, posted["content_data"])
}

// Runs against a real bucket when GCS_TEST_BUCKET is set
func TestGCSStore(t *testing.T) {
	bucket := os.Getenv("GCS_TEST_BUCKET")
	if bucket == "" {
		t.Skip("GCS_TEST_BUCKET not set")
	}
	ctx := context.Background()
	store, err := NewGCSStore(ctx, bucket, "study-pipeline-test/")
	require.NoError(t, err)
	defer store.Close()

	key := UploadKey("gcs-test", "img.png")
	require.NoError(t, store.Upload(ctx, key, []byte("data")))
	data, err := store.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
	require.NoError(t, store.Delete(ctx, key))
	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
