package projectio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// FormatForPath names the format of a project file by its extension:
// ".json" or ".dtt". The .rls companion of a .dtt file is found by
// replacing the extension.
func FormatForPath(path string) (string, error) {
	switch folder.String(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".dtt":
		return FormatExcalibur, nil
	default:
		return "", fmt.Errorf("%w: extension %q of %s, expected .json or .dtt", domain.ErrUnsupportedFormat, filepath.Ext(path), path)
	}
}

// RLSPath returns the realization file that belongs to a .dtt file.
func RLSPath(dttPath string) string {
	return strings.TrimSuffix(dttPath, filepath.Ext(dttPath)) + ".rls"
}

// LoadFile reads a project from a .json or .dtt file.
func LoadFile(path string) (*domain.Project, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &ports.IOError{Format: format, Path: path, Err: err}
	}
	defer f.Close()

	var p *domain.Project
	switch format {
	case FormatJSON:
		p, err = JSONCodec{}.Read(f)
	case FormatExcalibur:
		rls, openErr := os.Open(RLSPath(path))
		if openErr != nil {
			return nil, &ports.IOError{Format: format, Path: RLSPath(path), Err: openErr}
		}
		defer rls.Close()
		p, err = ExcaliburCodec{}.ReadPair(f, rls)
	}
	if err != nil {
		return nil, withPath(err, path)
	}
	return p, nil
}

// SaveFile writes the actual experts and items of p to a .json file, or to
// a .dtt file and its .rls companion.
func SaveFile(path string, p *domain.Project) (err error) {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if _, statErr := os.Stat(dir); statErr != nil {
			return &ports.IOError{Format: format, Path: path, Err: fmt.Errorf("directory %q does not exist: %w", dir, statErr)}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return &ports.IOError{Format: format, Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &ports.IOError{Format: format, Path: path, Err: cerr}
		}
	}()

	switch format {
	case FormatJSON:
		err = JSONCodec{}.Write(f, p)
	case FormatExcalibur:
		rls, createErr := os.Create(RLSPath(path))
		if createErr != nil {
			return &ports.IOError{Format: format, Path: RLSPath(path), Err: createErr}
		}
		err = ExcaliburCodec{}.WritePair(f, rls, p)
		if cerr := rls.Close(); cerr != nil && err == nil {
			err = &ports.IOError{Format: format, Path: RLSPath(path), Err: cerr}
		}
	}
	return withPath(err, path)
}

// LoadCSV reads a project from an assessments and an items CSV file.
func LoadCSV(assessmentsPath, itemsPath string, opts CSVOptions) (*domain.Project, error) {
	a, err := os.Open(assessmentsPath)
	if err != nil {
		return nil, &ports.IOError{Format: FormatCSV, Path: assessmentsPath, Err: err}
	}
	defer a.Close()
	it, err := os.Open(itemsPath)
	if err != nil {
		return nil, &ports.IOError{Format: FormatCSV, Path: itemsPath, Err: err}
	}
	defer it.Close()

	p, err := ReadCSV(a, it, opts)
	return p, withPath(err, assessmentsPath)
}

// withPath fills in the path of an IOError raised by a codec.
func withPath(err error, path string) error {
	var ioErr *ports.IOError
	if errors.As(err, &ioErr) && ioErr.Path == "" {
		ioErr.Path = path
	}
	return err
}
