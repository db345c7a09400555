package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpaktools/rpak"
	"github.com/rpaktools/rpak/rtech"
)

// frameHeaderLen covers the longest RTech frame header.
const frameHeaderLen = 32

func (b *Batch) info(_ context.Context, log *logrus.Entry, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	report, err := pakInfo(f, path, b.cfg.CLI.Info.Dump)
	if err != nil {
		return "", err
	}

	b.stdoutM.Lock()
	defer b.stdoutM.Unlock()
	_, err = io.WriteString(b.stdout, report)

	return "", err
}

// pakInfo returns the report for a single pak. It reads only the leading
// part of the pak.
func pakInfo(f io.ReaderAt, path string, dump bool) (string, error) {
	hdr := make([]byte, rpak.HeaderLen)
	if _, err := f.ReadAt(hdr, 0); err != nil {
		return "", errors.Wrap(truncated(err), "header")
	}
	h, err := rpak.ParseHeader(hdr)
	if err != nil {
		return "", err
	}

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s:\n", path)
	field := func(name, format string, a ...interface{}) {
		fmt.Fprintf(sb, "  %-24s "+format+"\n", append([]interface{}{name + ":"}, a...)...)
	}

	field("version", "%d", h.Version)
	field("flags", "%#04x", h.Flags)
	field("compression", "%v", h.Mode())
	field("created", "%s", h.Time().UTC().Format(time.RFC3339))
	field("checksum", "%#016x", h.Checksum)
	field("compressed size", "%d", h.CompressedSize)
	field("decompressed size", "%d", h.DecompressedSize)
	if h.IsCompressed() {
		field("ratio", "%.2f%%", h.Ratio())
	}
	field("embedded starpak", "offset %#x size %d", h.EmbeddedStarpakOffset,
		h.EmbeddedStarpakSize)
	field("patch index", "%d", h.PatchIndex)
	field("descriptors", "%d", h.DescriptorCount)
	field("assets", "%d", h.AssetCount)
	field("guid descriptors", "%d", h.GUIDDescriptorCount)
	field("relations", "%d", h.RelationCount)
	field("virtual segments", "%d", h.VirtualSegmentCount)
	field("memory pages", "%d at %#x", h.MemPageCount, h.MemPageOffset)

	switch h.Mode() {
	case rpak.ModeRTech:
		p := make([]byte, frameHeaderLen)
		n, err := f.ReadAt(p, rpak.HeaderLen)
		if err != nil && err != io.EOF {
			return "", err
		}
		fh, err := rtech.ReadFrameHeader(p[:n])
		if err != nil {
			field("rtech frame", "%s", err)
			break
		}
		field("rtech frame", "size %d chunk bits %d block bits %d",
			fh.Size, fh.ChunkBits, fh.BlockBits)
	case rpak.ModeNone:
		if h.PatchIndex == 0 {
			break
		}
		p := make([]byte, rpak.PatchDataSize(h))
		if _, err := f.ReadAt(p, 0); err != nil {
			return "", errors.Wrap(truncated(err), "patch headers")
		}
		patches, err := rpak.PatchHeaders(p)
		if err != nil {
			return "", err
		}
		field("edit stream", "%d bytes", patches.EditStreamSize)
		for _, pf := range patches.Files {
			name := filepath.Base(rpak.PatchFileName(path, pf.Number))
			field("patches "+name, "%d -> %d bytes",
				pf.CompressedSize, pf.DecompressedSize)
		}
	}

	if dump {
		fmt.Fprintf(sb, "%# v\n", pretty.Formatter(h))
	}

	return sb.String(), nil
}

func truncated(err error) error {
	if err == io.EOF {
		return rpak.ErrTruncated
	}
	return err
}
