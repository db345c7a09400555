package batch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpaktools/rpak"
	"github.com/rpaktools/rpak/rtech"
	"github.com/rpaktools/rpak/xlog"
)

func (b *Batch) decompress(ctx context.Context, log *logrus.Entry, path string) (string, error) {
	d := &b.cfg.CLI.Decompress

	if err := os.MkdirAll(d.Out, 0o755); err != nil {
		return "", errors.Wrap(err, "unable to create output directory")
	}
	out := filepath.Join(d.Out, filepath.Base(path))

	var (
		h   *rpak.Header
		err error
	)
	if d.Stream {
		h, err = b.decompressStream(ctx, log, path, out)
	} else {
		h, err = b.decompressFile(log, path, out)
	}
	if err != nil {
		return "", err
	}

	log.Infof("decompressed %v pak %s: %d -> %d bytes (%.2f%%)", h.Mode(),
		out, h.CompressedSize, h.DecompressedSize, h.Ratio())

	return out, nil
}

func notCompressed(h *rpak.Header) error {
	if h.IsCompressed() {
		return nil
	}
	return errors.Wrap(errSkip, "pak is not compressed")
}

func (b *Batch) decompressFile(log *logrus.Entry, path, out string) (*rpak.Header, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	h, err := rpak.ParseHeader(file)
	if err != nil {
		return nil, err
	}
	if err := notCompressed(h); err != nil {
		return nil, err
	}

	cfg := rpak.DecodeConfig{
		MaxSize: b.cfg.CLI.Decompress.MaxSize,
		Logger:  xlog.NewLogrus(log),
	}
	var c rtech.Counters
	if cfg.Logger != nil {
		cfg.Instrument = c.Record
	}

	p, err := rpak.DecompressConfig(file, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Logger != nil && h.Mode() == rpak.ModeRTech {
		log.WithFields(logrus.Fields{
			"blocks":      c.Blocks,
			"literals":    c.Literals,
			"matches":     c.Matches,
			"chunk_skips": c.ChunkSkips,
		}).Debug("rtech stream decoded")
	}

	err = b.writeOutput(out, func(w io.Writer) error {
		_, err := w.Write(p)
		return err
	})

	return h, err
}

func (b *Batch) decompressStream(ctx context.Context, log *logrus.Entry, path, out string) (*rpak.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := rpak.NewReaderConfig(f, rpak.ReaderConfig{
		Logger: xlog.NewLogrus(log),
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := r.Header()
	if err := notCompressed(&h); err != nil {
		return nil, err
	}

	err = b.writeOutput(out, func(w io.Writer) error {
		_, err := io.Copy(w, &ctxReader{ctx: ctx, r: r})
		return err
	})

	return &h, err
}

// updatePatches sets the patch headers of the decompressed paks to the
// sizes of the paks they patch. The patched paks are looked up in the
// output directory first, then next to the source pak.
func (b *Batch) updatePatches(outputs []*result) {
	for _, r := range outputs {
		log := b.log.WithFields(logrus.Fields{
			"method": "patch",
			"pak":    r.output,
		})

		if err := updatePatchFile(r.output, filepath.Dir(r.path)); err != nil {
			log.Warnf("unable to update patch headers: %s", err)
		}
	}
}

func updatePatchFile(out, srcDir string) error {
	f, err := os.OpenFile(out, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := make([]byte, rpak.HeaderLen)
	if _, err = io.ReadFull(f, hdr); err != nil {
		return err
	}
	h, err := rpak.ParseHeader(hdr)
	if err != nil {
		return err
	}
	if h.PatchIndex == 0 {
		return nil
	}

	p := make([]byte, rpak.PatchDataSize(h))
	if _, err = f.ReadAt(p, 0); err != nil {
		return errors.Wrap(err, "unable to read patch headers")
	}
	orig := bytes.Clone(p)

	size := func(name string) (int64, error) {
		fi, err := os.Stat(name)
		if os.IsNotExist(err) {
			fi, err = os.Stat(filepath.Join(srcDir, filepath.Base(name)))
		}
		if err != nil {
			return 0, err
		}
		return fi.Size(), nil
	}
	if err = rpak.UpdatePatchSizes(p, out, size); err != nil {
		return err
	}

	if bytes.Equal(p, orig) {
		return nil
	}
	if _, err = f.WriteAt(p, 0); err != nil {
		return err
	}

	return f.Close()
}
