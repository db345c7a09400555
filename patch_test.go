package rpak

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// patchPak builds a patch pak that patches the paks with the given
// numbers.
func patchPak(numbers ...uint16) []byte {
	le := binary.LittleEndian
	n := len(numbers)
	payload := make([]byte, patchDataLen+n*(patchFileLen+2)+64)
	le.PutUint32(payload, 0x100)
	le.PutUint32(payload[4:], 7)
	for i, num := range numbers {
		q := payload[patchDataLen+i*patchFileLen:]
		le.PutUint64(q, uint64(1000+i))
		le.PutUint64(q[8:], uint64(2000+i))
		le.PutUint16(payload[patchDataLen+n*patchFileLen+2*i:], num)
	}
	return testPak(payload, uint32(n))
}

func TestPatchHeaders(t *testing.T) {
	p, err := PatchHeaders(testPak(nil, 0))
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = PatchHeaders(patchPak(0, 3))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int32(0x100), p.EditStreamSize)
	assert.Equal(t, int32(7), p.PageCount)
	assert.Equal(t, []PatchFile{
		{CompressedSize: 1000, DecompressedSize: 2000, Number: 0},
		{CompressedSize: 1001, DecompressedSize: 2001, Number: 3},
	}, p.Files)

	_, err = PatchHeaders(testPak(make([]byte, 20), 2))
	assert.True(t, errors.Is(err, ErrTruncated), "error %v", err)

	c, err := Compress(patchPak(1), WriterConfig{})
	require.NoError(t, err)
	_, err = PatchHeaders(c)
	assert.True(t, errors.Is(err, ErrCompressed), "error %v", err)
}

func TestPatchDataSize(t *testing.T) {
	file := patchPak(0, 3)
	h, err := ParseHeader(file)
	require.NoError(t, err)
	n := PatchDataSize(h)
	assert.Equal(t, HeaderLen+patchDataLen+2*(patchFileLen+2), n)

	p, err := PatchHeaders(file[:n])
	require.NoError(t, err)
	assert.Len(t, p.Files, 2)
	_, err = PatchHeaders(file[:n-1])
	assert.True(t, errors.Is(err, ErrTruncated), "error %v", err)

	h.PatchIndex = 0
	assert.Equal(t, HeaderLen, PatchDataSize(h))
}

func TestPatchFileName(t *testing.T) {
	tests := []struct {
		path   string
		number uint16
		want   string
	}{
		{"paks/Win32/common.rpak", 0, "paks/Win32/common.rpak"},
		{"paks/Win32/common(02).rpak", 0, "paks/Win32/common.rpak"},
		{"paks/Win32/common(02).rpak", 1, "paks/Win32/common(01).rpak"},
		{"paks/Win32/common.rpak", 12, "paks/Win32/common(12).rpak"},
		{"(01).rpak", 2, "(01)(02).rpak"},
		{"paks(01)/common.rpak", 3, "paks(01)/common(03).rpak"},
	}
	for _, tc := range tests {
		path := filepath.FromSlash(tc.path)
		want := filepath.FromSlash(tc.want)
		assert.Equal(t, want, PatchFileName(path, tc.number),
			"PatchFileName(%q, %d)", tc.path, tc.number)
	}
}

func TestUpdatePatchSizes(t *testing.T) {
	dir := t.TempDir()
	for name, size := range map[string]int{
		"common.rpak":     500,
		"common(03).rpak": 700,
	} {
		err := os.WriteFile(filepath.Join(dir, name), make([]byte, size),
			0o644)
		require.NoError(t, err)
	}
	stat := func(name string) (int64, error) {
		fi, err := os.Stat(name)
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	}

	file := patchPak(0, 3)
	err := UpdatePatchSizes(file, filepath.Join(dir, "common(04).rpak"), stat)
	require.NoError(t, err)
	p, err := PatchHeaders(file)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.Files[0].CompressedSize)
	assert.Equal(t, uint64(700), p.Files[1].CompressedSize)
	assert.Equal(t, uint64(2001), p.Files[1].DecompressedSize)

	file = patchPak(5)
	err = UpdatePatchSizes(file, filepath.Join(dir, "common.rpak"), stat)
	assert.True(t, errors.Is(err, os.ErrNotExist), "error %v", err)

	tiny := func(string) (int64, error) { return HeaderLen, nil }
	err = UpdatePatchSizes(patchPak(1), "common.rpak", tiny)
	assert.True(t, errors.Is(err, ErrTruncated), "error %v", err)
}
