package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err
		}

		page = page.WithSection("Files", "Configuration is read from epub2m4b.yml in the user config directory.\n"+
			"Environment variables prefixed with EPUB2M4B_ override it, and a .env file in the working directory is loaded first.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
