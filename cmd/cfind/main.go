// cfind queries a search database created by cfind-index.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/cfind/internal/search"
	"github.com/jward/cfind/internal/store"
	"github.com/jward/cfind/internal/stdio"
	"github.com/jward/cfind/internal/sysexits"
)

const version = "0.1.0"

var (
	flagInteractive bool
	flagCommand     string
)

var ranQuery bool

var rootCmd = &cobra.Command{
	Use:           "cfind [flags] database-file",
	Short:         "Search a database created by cfind-index",
	Long:          "cfind answers queries about indexed C types: declaration sites (td),\ntypenames (tn), and member declarations (md).",
	Version:       version,
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  false,
	RunE:          runQuery,
}

func init() {
	rootCmd.Flags().BoolVarP(&flagInteractive, "interactive", "i", false, "interactive mode (default)")
	rootCmd.Flags().StringVarP(&flagCommand, "command", "c", "", "execute a single query command")
	rootCmd.SetVersionTemplate("cfind {{.Version}}\n")
}

// errUnavailable marks the reserved interactive surface.
var errUnavailable = errors.New("interactive mode unimplemented")

func runQuery(cmd *cobra.Command, args []string) error {
	ranQuery = true
	cmd.SilenceUsage = true

	if flagCommand == "" {
		return errUnavailable
	}

	query, err := search.Parse(flagCommand)
	if err != nil {
		return err
	}

	db, err := store.OpenSQL(args[0], true)
	if err != nil {
		return fmt.Errorf("open database %q: %w", args[0], err)
	}
	defer db.Close()

	return search.Run(db, os.Stdout, query)
}

func main() {
	if err := stdio.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "cannot set up stdio: %s\n", err)
		os.Exit(sysexits.Software)
	}

	err := rootCmd.Execute()
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, errUnavailable):
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(sysexits.Unavailable)
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrAmbiguous):
		// The search layer already printed the user-facing message.
		os.Exit(sysexits.DataErr)
	case !ranQuery, errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrRange):
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(sysexits.Usage)
	default:
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(sysexits.DataErr)
	}
}
