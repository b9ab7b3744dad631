// cfind-index produces a search database from C source files.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/cfind"
	"github.com/jward/cfind/internal/config"
	"github.com/jward/cfind/internal/store"
	"github.com/jward/cfind/internal/stdio"
	"github.com/jward/cfind/internal/sysexits"
)

const version = "0.1.0"

var (
	flagSrc    bool
	flagDir    bool
	flagOut    string
	flagDryRun bool
)

// ranIndex distinguishes flag/argument errors (usage exit code) from indexing
// failures (data exit code).
var ranIndex bool

var rootCmd = &cobra.Command{
	Use:           "cfind-index [flags] path",
	Short:         "Create a search database from C source files",
	Long:          "cfind-index parses C sources and records user-defined types, typenames,\nmembers, and type uses into a sqlite database for the cfind query tool.",
	Version:       version,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  false,
	RunE:          runIndex,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagSrc, "src", "s", false, "input path is a single `.c` file (default)")
	rootCmd.Flags().BoolVarP(&flagDir, "dir", "d", false, "input path is the parent directory of a compilation database")
	rootCmd.Flags().StringVarP(&flagOut, "out", "o", "", "path of the sqlite database to create")
	rootCmd.Flags().BoolVarP(&flagDryRun, "dry-run", "n", false, "index without persisting anything")
	rootCmd.SetVersionTemplate("cfind-index {{.Version}}\n")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ranIndex = true
	cmd.SilenceUsage = true
	start := time.Now()

	input := args[0]
	if flagSrc && flagDir {
		ranIndex = false
		return fmt.Errorf("-s and -d are mutually exclusive")
	}

	opt := cfind.WithSQL(dbPath())
	if flagDryRun {
		opt = cfind.WithNop()
	}

	ix, err := cfind.New(opt)
	if err != nil {
		return err
	}
	defer ix.Close()

	if flagDir {
		err = ix.IndexCompileCommands(input)
	} else {
		err = ix.IndexSource(input)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", input, time.Since(start).Round(time.Millisecond))
	if !flagDryRun {
		fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath())
	}
	return nil
}

// dbPath resolves the output database: flag, then environment, then the
// default.
func dbPath() string {
	if flagOut != "" {
		return flagOut
	}
	return config.Load().DBPath
}

func main() {
	if err := stdio.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot set up stdio: %s\n", err)
		os.Exit(sysexits.Software)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		switch {
		case !ranIndex, errors.Is(err, store.ErrInvalid):
			os.Exit(sysexits.Usage)
		default:
			os.Exit(sysexits.DataErr)
		}
	}
}
