// mkrootfs builds a minimal svinit root filesystem, either as a
// directory tree or as a newc cpio archive suitable for use as an
// initramfs.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sparrowlinux/svinit/pkg/rc"
	"github.com/sparrowlinux/svinit/pkg/rootfs"
)

func main() {
	inittabPath := flag.String("inittab", "", "inittab file to install as /etc/inittab")
	scriptsDir := flag.String("scripts", "", "directory of scripts to install under /etc/init.d")
	linksPath := flag.String("links", "", "link declaration file, one '<runlevel> <S|K><NN><script>' per line")
	outDir := flag.String("out", "", "write the tree into this directory")
	cpioPath := flag.String("cpio", "", "write the tree as a newc cpio archive to this file")
	flag.Parse()

	if (*outDir == "") == (*cpioPath == "") {
		fatal("exactly one of -out or -cpio must be given")
	}

	tree := &rootfs.Tree{Scripts: map[string][]byte{}}

	if *inittabPath != "" {
		content, err := os.ReadFile(*inittabPath)
		if err != nil {
			fatal("reading inittab: %v", err)
		}
		tree.Inittab = content
	}

	if *scriptsDir != "" {
		if err := loadScripts(tree, *scriptsDir); err != nil {
			fatal("reading scripts: %v", err)
		}
	}

	if *linksPath != "" {
		links, err := loadLinks(*linksPath)
		if err != nil {
			fatal("reading links: %v", err)
		}
		tree.Links = links
	}

	if err := tree.Validate(); err != nil {
		fatal("invalid tree: %v", err)
	}

	if *outDir != "" {
		if err := tree.WriteDir(*outDir); err != nil {
			fatal("writing tree: %v", err)
		}
		return
	}

	out, err := os.Create(*cpioPath)
	if err != nil {
		fatal("creating archive: %v", err)
	}
	if err := tree.WriteCPIO(out); err != nil {
		out.Close()
		fatal("writing archive: %v", err)
	}
	if err := out.Close(); err != nil {
		fatal("closing archive: %v", err)
	}
}

// loadScripts installs every regular file in dir as an init.d script.
func loadScripts(tree *rootfs.Tree, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		tree.Scripts[entry.Name()] = content
	}
	return nil
}

// loadLinks parses the link declaration file. Blank lines and lines
// starting with '#' are ignored.
func loadLinks(path string) ([]rootfs.Link, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var links []rootfs.Link
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected '<runlevel> <entry>'", path, lineNum)
		}
		link, err := parseLink(fields[0], fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", path, lineNum, err)
		}
		links = append(links, link)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// parseLink decodes an entry name of the form S10network or K20sshd.
func parseLink(level, entry string) (rootfs.Link, error) {
	if len(entry) < 4 {
		return rootfs.Link{}, fmt.Errorf("entry %q too short", entry)
	}

	var mode rc.Mode
	switch entry[0] {
	case 'S':
		mode = rc.ModeStart
	case 'K':
		mode = rc.ModeStop
	default:
		return rootfs.Link{}, fmt.Errorf("entry %q must start with S or K", entry)
	}

	order, err := strconv.Atoi(entry[1:3])
	if err != nil {
		return rootfs.Link{}, fmt.Errorf("entry %q has no two-digit order", entry)
	}

	return rootfs.Link{
		Runlevel: level,
		Mode:     mode,
		Order:    order,
		Script:   entry[3:],
	}, nil
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "mkrootfs: "+format+"\n", args...)
	os.Exit(1)
}
