package cfind

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// compileCommandsFile is the conventional name of a compilation database.
// Don't confuse it with the search database this tool produces: the
// compilation database is a JSON listing of how to compile every source file
// in a project, nothing database-like about it at all.
const compileCommandsFile = "compile_commands.json"

// compileCommand is one entry of a compilation database. Either Arguments or
// Command is populated depending on the generator.
type compileCommand struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments"`
	Command   string   `json:"command"`
}

// target is a normalized compile command: the source path (joined onto the
// entry's directory when relative) and the argument list handed to the
// frontend.
type target struct {
	path string
	args []string
}

// loadCompileCommands reads the compilation database found in dir and
// normalizes its entries.
func loadCompileCommands(dir string) ([]target, error) {
	path := filepath.Join(dir, compileCommandsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load compilation database: %w", err)
	}

	var cmds []compileCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, fmt.Errorf("decode %s: %w", compileCommandsFile, err)
	}

	targets := make([]target, 0, len(cmds))
	for _, cmd := range cmds {
		args := cmd.Arguments
		if len(args) == 0 {
			args = strings.Fields(cmd.Command)
		}

		file := cmd.File
		if !filepath.IsAbs(file) && cmd.Directory != "" {
			file = filepath.Join(cmd.Directory, file)
		}

		targets = append(targets, target{path: file, args: args})
	}
	return targets, nil
}
