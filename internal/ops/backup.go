package ops

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BackupSaves archives every *.json save in a file store directory and
// returns how many were written.
func BackupSaves(dir, archivePath string) (int, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if dir == "" || archivePath == "" {
		return 0, fmt.Errorf("dir and archive path are required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", dir)
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return 0, err
	}

	f, err := os.Create(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	names, err := saveFiles(dir)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		if err := addFile(tw, dir, name); err != nil {
			return 0, err
		}
	}
	if err := tw.Close(); err != nil {
		return 0, err
	}
	if err := gz.Close(); err != nil {
		return 0, err
	}
	return len(names), f.Close()
}

func addFile(tw *tar.Writer, dir, name string) error {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(tw, src)
	return err
}

// saveFiles lists the top-level regular *.json files in dir, sorted.
func saveFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// RestoreSaves unpacks an archive made by BackupSaves into dir. Nested or
// non-JSON entries are refused.
func RestoreSaves(archivePath, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	f, err := os.Open(archivePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	n := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, err := entryName(hdr.Name)
		if err != nil {
			return n, err
		}
		if err := writeEntry(filepath.Join(dir, name), tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
			return n, err
		}
		n++
	}
}

func entryName(name string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(name))
	if clean != filepath.Base(clean) || clean == "." || clean == ".." || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid archive entry %q", name)
	}
	if filepath.Ext(clean) != ".json" {
		return "", fmt.Errorf("unexpected archive entry %q", name)
	}
	return clean, nil
}

func writeEntry(path string, r io.Reader, mode fs.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

// DirDigest hashes the names and contents of the saves in dir, so a
// backup can be checked against its restore.
func DirDigest(dir string) (string, error) {
	names, err := saveFiles(dir)
	if err != nil {
		return "", err
	}
	var buf []byte
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", err
		}
		buf = append(buf, name...)
		buf = append(buf, '\n')
		buf = append(buf, Digest(b)...)
		buf = append(buf, '\n')
	}
	return Digest(buf), nil
}
