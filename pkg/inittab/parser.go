package inittab

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sparrowlinux/svinit/internal/util"
)

// Parse reads an inittab from r.
//
// Format:
//   - Lines starting with '#' are comments
//   - Empty lines are ignored
//   - Records are "id : actionClass : command", whitespace around fields
//     is trimmed
//
// The returned table has been validated: action classes are known, ids are
// unique and non-empty, commands are non-empty, and at most one sysinit
// entry exists. Any violation is a ConfigError.
func Parse(r io.Reader, fileName string) (*Table, error) {
	table := &Table{}
	seen := make(map[string]int) // id -> line
	sysinitLine := 0

	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		entry, err := parseRecord(trimmed)
		if err != nil {
			return nil, &ConfigError{FileName: fileName, Line: lineNum, Message: err.Error()}
		}

		if prev, dup := seen[entry.ID]; dup {
			return nil, &ConfigError{
				FileName: fileName,
				Line:     lineNum,
				Message:  fmt.Sprintf("duplicate id %q (first defined on line %d)", entry.ID, prev),
			}
		}
		seen[entry.ID] = lineNum

		if entry.Action == ActionSysinit {
			if sysinitLine > 0 {
				return nil, &ConfigError{
					FileName: fileName,
					Line:     lineNum,
					Message:  fmt.Sprintf("duplicate sysinit entry (first defined on line %d)", sysinitLine),
				}
			}
			sysinitLine = lineNum
		}

		table.Entries = append(table.Entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{FileName: fileName, Message: err.Error()}
	}

	return table, nil
}

// Load parses the inittab at path.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigError{FileName: path, Message: err.Error()}
	}
	defer f.Close()
	return Parse(f, path)
}

// parseRecord parses a single "id : actionClass : command" record.
// Command comes last so it may itself contain colons.
func parseRecord(line string) (Entry, error) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("expected 'id : action : command', got %q", line)
	}

	id := strings.TrimSpace(parts[0])
	if id == "" {
		return Entry{}, fmt.Errorf("empty id")
	}

	action, err := ParseAction(strings.TrimSpace(parts[1]))
	if err != nil {
		return Entry{}, err
	}

	command := util.SplitCommand(parts[2])
	if len(command) == 0 {
		return Entry{}, fmt.Errorf("entry %q has an empty command", id)
	}

	return Entry{ID: id, Action: action, Command: command}, nil
}
