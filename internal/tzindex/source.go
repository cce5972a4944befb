package tzindex

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
)

// ErrNoSource is returned when none of the candidate zoneinfo sources exist.
var ErrNoSource = errors.New("tzindex: no zoneinfo source found")

var tzifMagic = []byte("TZif")

// Subtrees and files in a zoneinfo directory that are not zone identifiers.
var skipped = map[string]bool{
	"posix":      true,
	"right":      true,
	"posixrules": true,
	"localtime":  true,
}

// DefaultSources lists the places zone names are read from, in order.
func DefaultSources() []string {
	var out []string
	if env := os.Getenv("ZONEINFO"); env != "" {
		out = append(out, env)
	}
	out = append(out,
		"/usr/share/zoneinfo",
		"/usr/lib/zoneinfo",
		"/usr/share/lib/zoneinfo",
		filepath.Join(runtime.GOROOT(), "lib", "time", "zoneinfo.zip"),
	)
	return out
}

// LoadFirst returns the names from the first source in paths that exists and
// yields at least one zone, together with that path.
func LoadFirst(paths []string) ([]string, string, error) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		names, err := LoadNames(p)
		if err != nil || len(names) == 0 {
			continue
		}
		return names, p, nil
	}
	return nil, "", ErrNoSource
}

// LoadNames enumerates zone identifiers in a zoneinfo directory or a
// zoneinfo.zip archive. Only names time.LoadLocation accepts are returned,
// sorted.
func LoadNames(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	var names []string
	if info.IsDir() {
		names, err = walkDir(path)
	} else {
		names, err = readZip(path)
	}
	if err != nil {
		return nil, fmt.Errorf("tzindex: read %s: %w", path, err)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func walkDir(root string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if skipped[rel] {
				return fs.SkipDir
			}
			return nil
		}
		if skipped[rel] || !hasMagic(path) {
			return nil
		}
		if valid(rel) {
			names = append(names, rel)
		}
		return nil
	})
	return names, err
}

func readZip(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := strings.TrimSuffix(f.Name, "/")
		top, _, _ := strings.Cut(name, "/")
		if skipped[top] {
			continue
		}
		if valid(name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func hasMagic(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, len(tzifMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, tzifMagic)
}

func valid(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}
