package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/reltuple/core"
	"github.com/pthm/reltuple/internal/cli"
)

var checkCmd = &cobra.Command{
	Use:   "check <subject> <action> <object>",
	Short: "Answer a single check query",
	Long: `Evaluate "may <subject> perform <action> on <object>?" against the
configured schema and store.

<subject> and <object> are "type:id" pairs, e.g. user:alice and doc:readme.`,
	Example: `  reltuple check user:alice read doc:readme`,
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		who, err := parseSubject(args[0])
		if err != nil {
			return cli.GeneralError("parsing subject", err)
		}
		action := args[1]
		obj, err := parseObject(args[2])
		if err != nil {
			return cli.GeneralError("parsing object", err)
		}

		allowed, err := client.Check(context.Background(), who, action, obj)
		if err != nil {
			return cli.GeneralError("check failed", err)
		}

		if allowed {
			fmt.Println("allow")
		} else {
			fmt.Println("deny")
		}
		return nil
	},
}

func parseSubject(s string) (core.Subject, error) {
	typ, id, err := splitTypeID(s)
	if err != nil {
		return core.Subject{}, err
	}
	return core.Subject{Type: core.ObjectType(typ), ID: id}, nil
}

func parseObject(s string) (core.Object, error) {
	typ, id, err := splitTypeID(s)
	if err != nil {
		return core.Object{}, err
	}
	return core.Object{Type: core.ObjectType(typ), ID: id}, nil
}

func splitTypeID(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected type:id, got %q", s)
	}
	return parts[0], parts[1], nil
}
