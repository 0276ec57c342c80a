package rc

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sparrowlinux/svinit/internal/util"
)

// Runlevel directories under the rc root, rc0.d through rc6.d plus rcS.d.
var runlevelNames = []string{"0", "1", "2", "3", "4", "5", "6", "S"}

// LoadDir scans a SysV-style rc directory tree and builds the runlevel
// table. root contains one rc<level>.d directory per runlevel; each entry
// inside is named <S|K><order><name> and usually symlinks into ../init.d.
//
// Missing runlevel directories are fine (sparse runlevels). Entries whose
// names do not follow the convention are a ConfigError: the table is the
// boot contract and a typoed prefix silently changing boot order is worse
// than refusing to boot.
func LoadDir(root string) (*Table, error) {
	table := NewTable()

	for _, level := range runlevelNames {
		dir := filepath.Join(root, "rc"+level+".d")
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ConfigError{Path: dir, Message: err.Error()}
		}

		for _, entry := range entries {
			name := entry.Name()
			if name[0] == '.' {
				continue
			}

			ref, err := parseRefName(level, name)
			if err != nil {
				return nil, &ConfigError{Path: filepath.Join(dir, name), Message: err.Error()}
			}

			ref.Target, err = resolveTarget(dir, name)
			if err != nil {
				return nil, &ConfigError{Path: filepath.Join(dir, name), Message: err.Error()}
			}

			if err := table.Add(ref); err != nil {
				return nil, &ConfigError{Path: filepath.Join(dir, name), Message: err.Error()}
			}
		}
	}

	return table, nil
}

// parseRefName decodes <S|K><order><name>, e.g. "S10network".
func parseRefName(level, name string) (ScriptRef, error) {
	if len(name) < 4 {
		return ScriptRef{}, fmt.Errorf("name %q too short for <S|K><NN><name>", name)
	}

	var mode Mode
	switch name[0] {
	case 'S':
		mode = ModeStart
	case 'K':
		mode = ModeStop
	default:
		return ScriptRef{}, fmt.Errorf("name %q must start with 'S' or 'K'", name)
	}

	order, err := strconv.Atoi(name[1:3])
	if err != nil {
		return ScriptRef{}, fmt.Errorf("name %q has a non-numeric order field", name)
	}

	return ScriptRef{
		Runlevel: level,
		Order:    order,
		Mode:     mode,
		Name:     name[3:],
	}, nil
}

// resolveTarget resolves a runlevel entry to the script it references.
// Symlinks resolve relative to the runlevel directory; regular files are
// their own target.
func resolveTarget(dir, name string) (string, error) {
	full := filepath.Join(dir, name)

	fi, err := os.Lstat(full)
	if err != nil {
		return "", err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return full, nil
	}

	dest, err := os.Readlink(full)
	if err != nil {
		return "", err
	}
	return util.CombinePaths(dir, dest), nil
}
