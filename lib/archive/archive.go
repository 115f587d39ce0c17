// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/klauspost/compress/zip"
)

const (
	// FileMode is applied to non-executable files.
	FileMode = 0o644
	// ExecutableMode is applied to directories and executable files.
	ExecutableMode = 0o755
)

// epoch is the timestamp written for every entry.
var epoch = time.Unix(0, 0).UTC()

// ErrUnsafeEntry is returned when an archive entry is neither a regular
// file nor a directory, or its name cannot be joined safely.
var ErrUnsafeEntry = errors.New("unsafe archive entry")

// Entry is one file to write into an archive.
type Entry struct {
	// Name is the slash-separated path inside the archive.
	Name string
	// Path is the file on disk.
	Path string
	// Executable forces mode 0755. Otherwise the on-disk executable
	// bit decides.
	Executable bool
}

// Walk lists every regular file under root as entries named relative
// to root, in lexical order. Symlinks and other special files are
// skipped.
func Walk(root string) ([]Entry, error) {
	var entries []Entry
	err := filepath.WalkDir(root, func(current string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{Name: filepath.ToSlash(relative), Path: current})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return entries, nil
}

// sortedWithDirectories orders entries by name and returns the parent
// directories that need their own headers, also sorted.
func sortedWithDirectories(entries []Entry) ([]Entry, []string) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })

	seen := make(map[string]bool)
	var directories []string
	for _, entry := range sorted {
		for dir := path.Dir(entry.Name); dir != "." && dir != "/" && !seen[dir]; dir = path.Dir(dir) {
			seen[dir] = true
			directories = append(directories, dir)
		}
	}
	slices.Sort(directories)
	return sorted, directories
}

func entryMode(entry Entry, info fs.FileInfo) int64 {
	if entry.Executable || info.Mode()&0o111 != 0 {
		return ExecutableMode
	}
	return FileMode
}

// WriteTar writes entries as an uncompressed tar stream to writer.
// Returns the number of files written.
func WriteTar(writer io.Writer, entries []Entry) (int, error) {
	sorted, directories := sortedWithDirectories(entries)
	tarWriter := tar.NewWriter(writer)

	for _, dir := range directories {
		header := &tar.Header{
			Typeflag: tar.TypeDir,
			Name:     dir + "/",
			Mode:     ExecutableMode,
			ModTime:  epoch,
			Format:   tar.FormatPAX,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return 0, fmt.Errorf("writing directory header %s: %w", dir, err)
		}
	}

	for _, entry := range sorted {
		if err := writeTarFile(tarWriter, entry); err != nil {
			return 0, err
		}
	}
	if err := tarWriter.Close(); err != nil {
		return 0, fmt.Errorf("closing tar stream: %w", err)
	}
	return len(sorted), nil
}

func writeTarFile(tarWriter *tar.Writer, entry Entry) error {
	file, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrUnsafeEntry, entry.Path)
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     entry.Name,
		Size:     info.Size(),
		Mode:     entryMode(entry, info),
		ModTime:  epoch,
		Format:   tar.FormatPAX,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("writing header %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(tarWriter, file); err != nil {
		return fmt.Errorf("writing %s: %w", entry.Name, err)
	}
	return nil
}

// ExtractTar extracts a tar stream into destination, which must
// exist. Returns the slash-separated names of the files written.
func ExtractTar(reader io.Reader, destination string) ([]string, error) {
	tarReader := tar.NewReader(reader)
	var names []string
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return names, fmt.Errorf("reading tar stream: %w", err)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			target, err := safePath(destination, header.Name)
			if err != nil {
				return names, err
			}
			if err := os.MkdirAll(target, ExecutableMode); err != nil {
				return names, err
			}
		case tar.TypeReg:
			if err := extractFile(destination, header.Name, header.FileInfo().Mode(), tarReader); err != nil {
				return names, err
			}
			names = append(names, strings.TrimPrefix(path.Clean(header.Name), "/"))
		default:
			return names, fmt.Errorf("%w: %s has type %q", ErrUnsafeEntry, header.Name, header.Typeflag)
		}
	}
}

// WriteZip writes entries as a zip archive to writer. Returns the
// number of files written.
func WriteZip(writer io.Writer, entries []Entry) (int, error) {
	sorted, _ := sortedWithDirectories(entries)
	zipWriter := zip.NewWriter(writer)

	for _, entry := range sorted {
		if err := writeZipFile(zipWriter, entry); err != nil {
			return 0, err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return 0, fmt.Errorf("closing zip archive: %w", err)
	}
	return len(sorted), nil
}

func writeZipFile(zipWriter *zip.Writer, entry Entry) error {
	file, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrUnsafeEntry, entry.Path)
	}

	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: epoch,
	}
	header.SetMode(fs.FileMode(entryMode(entry, info)))
	output, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("writing header %s: %w", entry.Name, err)
	}
	if _, err := io.Copy(output, file); err != nil {
		return fmt.Errorf("writing %s: %w", entry.Name, err)
	}
	return nil
}

// ExtractZip extracts the zip archive at archivePath into destination.
// Returns the slash-separated names of the files written.
func ExtractZip(archivePath, destination string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer reader.Close()

	var names []string
	for _, file := range reader.File {
		mode := file.Mode()
		switch {
		case mode.IsDir():
			target, err := safePath(destination, file.Name)
			if err != nil {
				return names, err
			}
			if err := os.MkdirAll(target, ExecutableMode); err != nil {
				return names, err
			}
		case mode.IsRegular():
			content, err := file.Open()
			if err != nil {
				return names, fmt.Errorf("opening %s in archive: %w", file.Name, err)
			}
			err = extractFile(destination, file.Name, mode, content)
			content.Close()
			if err != nil {
				return names, err
			}
			names = append(names, strings.TrimPrefix(path.Clean(file.Name), "/"))
		default:
			return names, fmt.Errorf("%w: %s has mode %v", ErrUnsafeEntry, file.Name, mode)
		}
	}
	return names, nil
}

func safePath(destination, name string) (string, error) {
	target, err := securejoin.SecureJoin(destination, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsafeEntry, name, err)
	}
	return target, nil
}

func extractFile(destination, name string, mode fs.FileMode, content io.Reader) error {
	target, err := safePath(destination, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), ExecutableMode); err != nil {
		return err
	}
	perm := fs.FileMode(FileMode)
	if mode&0o111 != 0 {
		perm = ExecutableMode
	}
	file, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return fmt.Errorf("extracting %s: %w", name, err)
	}
	return file.Close()
}
