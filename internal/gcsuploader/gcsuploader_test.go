package gcsuploader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/reports/案件A", "bucket", "reports/案件A", false},
		{"gs://bucket", "bucket", "", false},
		{"gs://bucket/", "bucket", "", false},
		{"gs:///object", "", "", true},
		{"/local/dir", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantObject, object)
		})
	}
}

func TestLocalName(t *testing.T) {
	name, ok := LocalName("in/", "in/page1.html")
	assert.True(t, ok)
	assert.Equal(t, "page1.html", name)

	_, ok = LocalName("in/", "in/")
	assert.False(t, ok, "directory placeholder")

	_, ok = LocalName("in/", "in/sub/page2.html")
	assert.False(t, ok, "nested object")

	_, ok = LocalName("in/", "other/page3.html")
	assert.False(t, ok)

	name, ok = LocalName("", "page4.html")
	assert.True(t, ok)
	assert.Equal(t, "page4.html", name)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "reports/案件A/流水总表.csv", ObjectName("/reports/案件A/", "流水总表.csv"))
	assert.Equal(t, "流水总表.csv", ObjectName("", "流水总表.csv"))
}

func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.xlsx"), []byte("y"), 0o644))

	files, err := listFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.csv", "sub/b.xlsx"}, files)

	_, err = listFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
