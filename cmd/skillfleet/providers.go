package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the registered inference providers",
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	names := a.registry.List()
	sort.Strings(names)

	active := a.cfg.Provider.Type.String()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS")
	for _, name := range names {
		status := ""
		if name == active {
			status = "active"
		}
		fmt.Fprintf(w, "%s\t%s\n", name, status)
	}
	return w.Flush()
}
