package rpak

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	// patchDataLen is the length of the patch data header that follows
	// the file header of a patch pak.
	patchDataLen = 8
	// patchFileLen is the length of a single patch file header.
	patchFileLen = 16
)

// ErrCompressed indicates that an operation requires a decompressed pak.
var ErrCompressed = errors.New("rpak: pak is compressed")

// PatchFile describes a pak that is patched by the current pak.
type PatchFile struct {
	CompressedSize   uint64
	DecompressedSize uint64
	// Number selects the file name of the patched pak.
	Number uint16
}

// Patches holds the patch headers following the file header.
type Patches struct {
	EditStreamSize int32
	PageCount      int32
	Files          []PatchFile
}

// patchFileOffset returns the offset of the patch file header i.
func patchFileOffset(i int) int {
	return HeaderLen + patchDataLen + i*patchFileLen
}

// patchNumberOffset returns the offset of the patch number i. The numbers
// follow the last patch file header.
func patchNumberOffset(count, i int) int {
	return patchFileOffset(count) + 2*i
}

// patchCount returns the number of patch headers of a decompressed pak and
// checks that they fit into the file.
func patchCount(file []byte) (n int, err error) {
	h, err := ParseHeader(file)
	if err != nil {
		return 0, err
	}
	if h.IsCompressed() {
		return 0, errors.Wrap(ErrCompressed, "patch headers")
	}
	if h.PatchIndex == 0 {
		return 0, nil
	}
	max := (len(file) - HeaderLen - patchDataLen) / (patchFileLen + 2)
	if max < 0 || uint64(h.PatchIndex) > uint64(max) {
		return 0, errors.Wrapf(ErrTruncated, "%d patch headers",
			h.PatchIndex)
	}
	return int(h.PatchIndex), nil
}

// PatchDataSize returns the length of the leading part of a decompressed
// pak that holds the file header and the patch headers. The patch functions
// need no more than this prefix.
func PatchDataSize(h *Header) int {
	if h.PatchIndex == 0 {
		return HeaderLen
	}
	n := int(h.PatchIndex)
	return patchNumberOffset(n, n)
}

// PatchHeaders returns the patch headers of a decompressed pak. A pak
// without patches returns nil.
func PatchHeaders(file []byte) (*Patches, error) {
	n, err := patchCount(file)
	if err != nil || n == 0 {
		return nil, err
	}
	le := binary.LittleEndian
	p := &Patches{
		EditStreamSize: int32(le.Uint32(file[HeaderLen:])),
		PageCount:      int32(le.Uint32(file[HeaderLen+4:])),
		Files:          make([]PatchFile, n),
	}
	for i := range p.Files {
		q := file[patchFileOffset(i):]
		p.Files[i] = PatchFile{
			CompressedSize:   le.Uint64(q),
			DecompressedSize: le.Uint64(q[8:]),
			Number:           le.Uint16(file[patchNumberOffset(n, i):]),
		}
	}
	return p, nil
}

// PatchFileName returns the path of the pak with the given patch number
// that belongs to the pak at path. Number 0 is the base pak without a
// number suffix.
func PatchFileName(path string, number uint16) string {
	dir, name := filepath.Split(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	// a name starting with the patch number keeps it
	if i := strings.LastIndexByte(name, '('); i > 0 {
		name = name[:i]
	}
	if number == 0 {
		return dir + name + ".rpak"
	}
	return fmt.Sprintf("%s%s(%02d).rpak", dir, name, number)
}

// UpdatePatchSizes sets the compressed size in each patch file header of
// the decompressed pak to the size of the patched pak file. The file names
// are derived from path using PatchFileName; size returns the size of a
// file.
func UpdatePatchSizes(file []byte, path string,
	size func(name string) (int64, error)) error {

	n, err := patchCount(file)
	if err != nil {
		return err
	}
	le := binary.LittleEndian
	for i := 0; i < n; i++ {
		number := le.Uint16(file[patchNumberOffset(n, i):])
		name := PatchFileName(path, number)
		k, err := size(name)
		if err != nil {
			return errors.Wrapf(err, "rpak: patched pak %s", name)
		}
		if k <= HeaderLen {
			return errors.Wrapf(ErrTruncated, "patched pak %s", name)
		}
		le.PutUint64(file[patchFileOffset(i):], uint64(k))
	}
	return nil
}
