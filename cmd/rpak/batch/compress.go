package batch

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpaktools/rpak"
	"github.com/rpaktools/rpak/xlog"
)

func (b *Batch) compress(_ context.Context, log *logrus.Entry, path string) (string, error) {
	c := &b.cfg.CLI.Compress

	wcfg, err := c.WriterConfig()
	if err != nil {
		return "", err
	}
	wcfg.Logger = xlog.NewLogrus(log)

	file, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	h, err := rpak.ParseHeader(file)
	if err != nil {
		return "", err
	}
	if h.IsCompressed() {
		return "", errors.Wrapf(errSkip, "pak is already %v compressed", h.Mode())
	}

	p, err := rpak.Compress(file, wcfg)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return "", errors.Wrap(err, "unable to create output directory")
	}
	out := filepath.Join(c.Out, filepath.Base(path))

	err = b.writeOutput(out, func(w io.Writer) error {
		_, err := w.Write(p)
		return err
	})
	if err != nil {
		return "", err
	}

	ch, err := rpak.ParseHeader(p)
	if err != nil {
		return "", err
	}
	log.Infof("compressed %s with %v: %d -> %d bytes (%.2f%%)", out,
		wcfg.Mode, ch.DecompressedSize, ch.CompressedSize, ch.Ratio())

	return out, nil
}
