// Package tuning measures the RTech encoder on test corpora. It supports
// the selection of the match finder parameters.
package tuning

import (
	"io/fs"

	"github.com/rpaktools/rpak/rtech"
)

type File struct {
	Name string
	Data []byte
}

func Files(corpus fs.FS) (files []File, err error) {
	err = fs.WalkDir(corpus, ".",
		func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			data, err := fs.ReadFile(corpus, path)
			if err != nil {
				return err
			}
			files = append(files, File{Name: path, Data: data})
			return nil
		})
	return files, err
}

func Size(files []File) int64 {
	n := int64(0)
	for _, f := range files {
		n += int64(len(f.Data))
	}
	return n
}

// RTechCompress compresses each file into its own stream and returns the
// total size of the streams. Empty files are ignored.
func RTechCompress(files []File, cfg rtech.EncoderConfig) (compressedSize int64, err error) {
	for _, f := range files {
		if len(f.Data) == 0 {
			continue
		}
		p, err := rtech.Compress(f.Data, cfg)
		if err != nil {
			return compressedSize, err
		}
		compressedSize += int64(len(p))
	}
	return compressedSize, nil
}

// Ratio returns the quotient of the compressed and the uncompressed size
// of the files.
func Ratio(files []File, cfg rtech.EncoderConfig) (r float64, err error) {
	c, err := RTechCompress(files, cfg)
	if err != nil {
		return 0, err
	}
	n := Size(files)
	if n == 0 {
		return 0, nil
	}
	return float64(c) / float64(n), nil
}
