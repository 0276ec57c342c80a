package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// runlevelFile is the runlevel record inside the state directory. Its
// content is "<previous> <current>\n", matching what runlevel(8) prints;
// "N" stands for no previous level.
const runlevelFile = "runlevel"

// writeRunlevelRecord atomically replaces the runlevel record. A torn
// record after power loss would confuse every tool that consumes it, so
// the write goes through a renamed temp file.
func writeRunlevelRecord(stateDir, prev, current string) error {
	if stateDir == "" {
		return nil
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	record := fmt.Sprintf("%s %s\n", prev, current)
	return renameio.WriteFile(filepath.Join(stateDir, runlevelFile), []byte(record), 0o644)
}

// ReadRunlevelRecord returns the previous and current runlevel recorded in
// stateDir.
func ReadRunlevelRecord(stateDir string) (prev, current string, err error) {
	data, err := os.ReadFile(filepath.Join(stateDir, runlevelFile))
	if err != nil {
		return "", "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) != 2 {
		return "", "", fmt.Errorf("malformed runlevel record: %q", string(data))
	}
	return fields[0], fields[1], nil
}
