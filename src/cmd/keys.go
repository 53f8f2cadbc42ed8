package cmd

import (
	"fmt"
	"strings"

	"finpilot-server/src/cache"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys [tag]",
	Short: "Print the cache keys a mutation tag invalidates",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			for _, k := range cache.InvalidationKeys(cache.MutationTag(args[0])) {
				fmt.Fprintln(out, k)
			}
			return nil
		}
		for _, tag := range cache.MutationTags() {
			fmt.Fprintf(out, "%s: %s\n", tag, strings.Join(cache.InvalidationKeys(tag), ", "))
		}
		return nil
	},
}
