// Package rootfs generates the static filesystem skeleton the svinit
// supervisor consumes: the base directory set, /etc/inittab, the service
// scripts under /etc/init.d, and the S/K-named runlevel symlinks under
// /etc/rc.d.
package rootfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sparrowlinux/svinit/pkg/rc"
)

// baseDirs is the directory set every generated tree carries.
var baseDirs = []string{
	"bin",
	"sbin",
	"etc",
	"etc/init.d",
	"etc/rc.d/rc0.d",
	"etc/rc.d/rc1.d",
	"etc/rc.d/rc2.d",
	"etc/rc.d/rc3.d",
	"etc/rc.d/rc4.d",
	"etc/rc.d/rc5.d",
	"etc/rc.d/rc6.d",
	"etc/rc.d/rcS.d",
	"dev",
	"proc",
	"sys",
	"run",
	"tmp",
	"var",
	"var/log",
}

// Link declares one runlevel table entry to serialize as a symlink.
type Link struct {
	Runlevel string
	Mode     rc.Mode
	Order    int
	Script   string // basename under /etc/init.d
}

// EntryName renders the S/K-prefixed directory entry name.
func (l Link) EntryName() string {
	prefix := "S"
	if l.Mode == rc.ModeStop {
		prefix = "K"
	}
	return fmt.Sprintf("%s%02d%s", prefix, l.Order, l.Script)
}

// linkTarget is the symlink destination, relative to the rc<level>.d
// directory.
func (l Link) linkTarget() string {
	return filepath.Join("..", "..", "init.d", l.Script)
}

// Tree is a declarative filesystem skeleton.
type Tree struct {
	// Inittab is the rendered /etc/inittab content.
	Inittab []byte

	// Scripts maps basename to content; each is installed executable
	// under /etc/init.d.
	Scripts map[string][]byte

	// Links are the runlevel directory entries.
	Links []Link
}

// Validate checks that every link references a known script and a valid
// runlevel before anything is written.
func (t *Tree) Validate() error {
	for _, link := range t.Links {
		if link.Order < 0 || link.Order > 99 {
			return fmt.Errorf("link %s: order %d out of range", link.EntryName(), link.Order)
		}
		if _, ok := t.Scripts[link.Script]; !ok {
			return fmt.Errorf("link %s references unknown script %q", link.EntryName(), link.Script)
		}
		found := false
		for _, level := range []string{"0", "1", "2", "3", "4", "5", "6", "S"} {
			if link.Runlevel == level {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("link %s: invalid runlevel %q", link.EntryName(), link.Runlevel)
		}
	}
	return nil
}

// WriteDir materializes the tree under root.
func (t *Tree) WriteDir(root string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	for _, dir := range baseDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return err
		}
	}

	if len(t.Inittab) > 0 {
		if err := os.WriteFile(filepath.Join(root, "etc", "inittab"), t.Inittab, 0o644); err != nil {
			return err
		}
	}

	for name, content := range t.Scripts {
		if err := os.WriteFile(filepath.Join(root, "etc", "init.d", name), content, 0o755); err != nil {
			return err
		}
	}

	for _, link := range t.Links {
		path := filepath.Join(root, "etc", "rc.d", "rc"+link.Runlevel+".d", link.EntryName())
		if err := os.Symlink(link.linkTarget(), path); err != nil && !os.IsExist(err) {
			return err
		}
	}

	return nil
}
