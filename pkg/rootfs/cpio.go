package rootfs

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/cavaliergopher/cpio"
)

const numLinks = 2

// WriteCPIO serializes the tree as a newc cpio archive, the format the
// kernel accepts as an initramfs image.
func (t *Tree) WriteCPIO(w io.Writer) error {
	if err := t.Validate(); err != nil {
		return err
	}

	cw := cpio.NewWriter(w)

	for _, dir := range baseDirs {
		if err := writeDirectory(cw, dir); err != nil {
			return err
		}
	}

	if len(t.Inittab) > 0 {
		if err := writeRegular(cw, "etc/inittab", t.Inittab, 0o644); err != nil {
			return err
		}
	}

	// Map iteration order is random; archives should be reproducible.
	names := make([]string, 0, len(t.Scripts))
	for name := range t.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writeRegular(cw, filepath.Join("etc", "init.d", name), t.Scripts[name], 0o755); err != nil {
			return err
		}
	}

	for _, link := range t.Links {
		path := filepath.Join("etc", "rc.d", "rc"+link.Runlevel+".d", link.EntryName())
		if err := writeLink(cw, path, link.linkTarget()); err != nil {
			return err
		}
	}

	if err := cw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

func writeDirectory(w *cpio.Writer, path string) error {
	header := &cpio.Header{
		Name:  path,
		Mode:  cpio.TypeDir | 0o755,
		Links: numLinks,
	}
	if err := w.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %s: %w", path, err)
	}
	return nil
}

func writeLink(w *cpio.Writer, path, target string) error {
	header := &cpio.Header{
		Name: path,
		Mode: cpio.TypeSymlink | cpio.ModePerm,
		Size: int64(len(target)),
	}
	if err := w.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %s: %w", path, err)
	}
	// Body of a link is the path of the target file.
	if _, err := w.Write([]byte(target)); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}
	return nil
}

func writeRegular(w *cpio.Writer, path string, content []byte, mode cpio.FileMode) error {
	header := &cpio.Header{
		Name: path,
		Mode: cpio.TypeReg | mode,
		Size: int64(len(content)),
	}
	if err := w.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %s: %w", path, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("write body for %s: %w", path, err)
	}
	return nil
}
