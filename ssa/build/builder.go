package build

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"

	"github.com/nickng/loopopt/ssa"
	"github.com/pkg/errors"
)

// Builder builds SSA IR and metainfo.
type Builder interface {
	Build() (*ssa.Info, error)
}

// FileSrc is a set of filenames.
type FileSrc struct {
	Files []string
}

// FromFiles returns a non-nil Builder from filenames of one package.
func FromFiles(files ...string) Configurer {
	return newConfig(&FileSrc{Files: files})
}

// NewReader returns an io.Reader for reading all files. Files which cannot
// be read are skipped.
func (s *FileSrc) NewReader() io.Reader {
	var rds []io.Reader
	for _, name := range s.Files {
		b, err := ioutil.ReadFile(name)
		if err != nil {
			continue
		}
		rds = append(rds, bytes.NewReader(b))
	}
	return io.MultiReader(rds...)
}

// check returns an error for the first file that cannot be opened.
func (s *FileSrc) check() error {
	for _, name := range s.Files {
		f, err := os.Open(name)
		if err != nil {
			return errors.Wrapf(err, "failed to read from file: %s", name)
		}
		f.Close()
	}
	return nil
}

// CachedSrc is source file from a reader.
type CachedSrc struct {
	cached []byte
	err    error
}

// FromReader returns a non-nil Builder for a reader.
// This is typically used for testing or building a temporary file.
func FromReader(r io.Reader) Configurer {
	b, err := ioutil.ReadAll(r)
	if err != nil {
		err = errors.Wrap(err, "failed to read from reader")
	}
	return newConfig(&CachedSrc{cached: b, err: err})
}

// NewReader returns a reader for reading the string content.
func (s *CachedSrc) NewReader() io.Reader {
	return bytes.NewReader(s.cached)
}
