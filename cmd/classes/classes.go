// Package classes implements the command that prints class tables.
package classes

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Timvanhoudt/VirtualTeamLeader/internal/inference"
)

// Command creates the classes command.
func Command() *cobra.Command {
	var (
		scheme string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print the class table of a classification scheme",
		Long: "Print the class ids, labels and missing tools of a scheme. Known schemes: " +
			joinKinds(inference.SchemeKinds()) + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := inference.SchemeFor(scheme)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s.Classes())
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "# %s (%d classes)\n", s.Kind(), s.Arity())
			fmt.Fprintln(w, "ID\tLABEL\tSTATUS\tMISSING\tNAME")
			for _, c := range s.Classes() {
				missing := "-"
				if len(c.MissingItems) > 0 {
					missing = strings.Join(c.MissingItems, ",")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.ID, c.Label, c.Status, missing, c.Name)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&scheme, "scheme", "s", string(inference.DefaultScheme), "Classification scheme")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func joinKinds(kinds []inference.SchemeKind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}
