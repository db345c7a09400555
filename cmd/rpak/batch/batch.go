// Package batch processes the pak files given on the command line with a
// pool of workers.
package batch

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rpaktools/rpak/cmd/rpak/config"
)

// errSkip marks paks that need no processing.
var errSkip = errors.New("skipped")

type processFunc func(ctx context.Context, log *logrus.Entry, path string) (output string, err error)

type result struct {
	path   string
	output string
	err    error
}

type Batch struct {
	cfg     *config.Config
	log     *logrus.Entry
	tmp     *tmpFiles
	process processFunc

	// info reports go to stdout
	stdout  io.Writer
	stdoutM sync.Mutex
}

func New(cfg *config.Config) (*Batch, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}

	b := &Batch{
		cfg:    cfg,
		log:    logrus.WithField("pkg", "batch"),
		tmp:    newTmpFiles(),
		stdout: os.Stdout,
	}

	switch cfg.Command {
	case config.CommandDecompress:
		b.process = b.decompress
	case config.CommandCompress:
		b.process = b.compress
	case config.CommandInfo:
		b.process = b.info
	}

	return b, nil
}

// RemoveTemp removes all partially written outputs. Outputs can't be
// created afterwards.
func (b *Batch) RemoveTemp() {
	for _, p := range b.tmp.removeAll() {
		b.log.Warnf("removed partial output %s", p)
	}
}

func (b *Batch) Run(shutdownCtx context.Context) error {
	paks := b.cfg.Paks()
	wg := &sync.WaitGroup{}
	workCh := make(chan string, b.cfg.CLI.Workers)
	resCh := make(chan *result, len(paks))

	// Launch workers
	for i := 0; i < b.cfg.CLI.Workers; i++ {
		wg.Add(1)

		go func(id int) {
			b.log.Debugf("worker %d start", id)
			defer b.log.Debugf("worker %d exit", id)
			defer wg.Done()

			b.runWorker(shutdownCtx, id, workCh, resCh)
		}(i)
	}

	// Feed the paks until all are queued or the context is done
	go func() {
		defer close(workCh)

		for _, p := range paks {
			select {
			case workCh <- p:
			case <-shutdownCtx.Done():
				b.log.Debug("received context done, no more paks queued")
				return
			}
		}
	}()

	wg.Wait()
	close(resCh)

	var processed, skipped, failed int
	var outputs []*result

	for r := range resCh {
		switch {
		case r.err == nil:
			processed++
			if r.output != "" {
				outputs = append(outputs, r)
			}
		case errors.Is(r.err, errSkip):
			skipped++
		default:
			failed++
		}
	}

	if b.cfg.Command == config.CommandDecompress && !b.cfg.CLI.Decompress.NoPatch {
		b.updatePatches(outputs)
	}

	b.log.WithFields(logrus.Fields{
		"processed": processed,
		"skipped":   skipped,
		"failed":    failed,
	}).Debug("batch completed")

	if err := shutdownCtx.Err(); err != nil {
		return errors.Wrap(err, "batch interrupted")
	}

	if failed > 0 {
		return errors.Errorf("%d of %d paks failed", failed, len(paks))
	}

	return nil
}

func (b *Batch) runWorker(ctx context.Context, id int, workCh <-chan string, resCh chan<- *result) {
	for path := range workCh {
		log := b.log.WithFields(logrus.Fields{
			"method": b.cfg.Command,
			"worker": id,
			"pak":    path,
		})

		r := &result{path: path}
		if r.err = ctx.Err(); r.err == nil {
			r.output, r.err = b.process(ctx, log, path)
		}

		switch {
		case r.err == nil:
		case errors.Is(r.err, errSkip):
			log.Info(r.err)
		default:
			log.Errorf("unable to %s pak: %s", b.cfg.Command, r.err)
		}

		resCh <- r
	}
}

// ctxReader stops reading when the context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (n int, err error) {
	if err = r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
