package batch

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/rpaktools/rpak/cmd/rpak/config"
)

var errShutdown = errors.New("shutting down")

// tmpFiles tracks the outputs that are still written under their temporary
// name.
type tmpFiles struct {
	mu     sync.Mutex
	paths  map[string]struct{}
	closed bool
}

func newTmpFiles() *tmpFiles {
	return &tmpFiles{paths: make(map[string]struct{})}
}

func (t *tmpFiles) create(path string) (*os.File, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, errShutdown
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	t.paths[path] = struct{}{}
	return f, nil
}

// commit renames the temporary file to its final name.
func (t *tmpFiles) commit(path, final string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errShutdown
	}
	delete(t.paths, path)
	return os.Rename(path, final)
}

func (t *tmpFiles) discard(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.paths[path]; ok {
		os.Remove(path)
		delete(t.paths, path)
	}
}

// removeAll removes all temporary files and returns their paths.
func (t *tmpFiles) removeAll() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	var removed []string
	for p := range t.paths {
		if err := os.Remove(p); err == nil {
			removed = append(removed, p)
		}
		delete(t.paths, p)
	}
	return removed
}

// writeOutput writes the output under a temporary name and renames it
// after write succeeded.
func (b *Batch) writeOutput(out string, write func(w io.Writer) error) error {
	tmp := out + config.TmpSuffix
	f, err := b.tmp.create(tmp)
	if err != nil {
		return err
	}

	err = write(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		b.tmp.discard(tmp)
		return err
	}

	return b.tmp.commit(tmp, out)
}
