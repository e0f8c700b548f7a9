package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/reltuple/core"
	"github.com/pthm/reltuple/internal/cli"
)

var listObjectsAction string

var listObjectsCmd = &cobra.Command{
	Use:   "list-objects <subject> <object-type>",
	Short: "Enumerate objects a subject can reach",
	Long: `Run list_accessible_objects for <subject> over every object of
<object-type>, optionally filtered to a single action with --action.`,
	Example: `  reltuple list-objects user:alice doc
  reltuple list-objects user:alice doc --action read`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		who, err := parseSubject(args[0])
		if err != nil {
			return cli.GeneralError("parsing subject", err)
		}
		objType := core.ObjectType(args[1])

		var actionFilter *string
		if listObjectsAction != "" {
			actionFilter = &listObjectsAction
		}

		results, err := client.ListAccessibleObjects(context.Background(), who, objType, actionFilter)
		if err != nil {
			return cli.GeneralError("list-objects failed", err)
		}

		for _, r := range results {
			fmt.Printf("%s\t%v\n", r.Object.String(), r.Actions)
		}
		return nil
	},
}

func init() {
	listObjectsCmd.Flags().StringVar(&listObjectsAction, "action", "", "restrict to a single action")
}
