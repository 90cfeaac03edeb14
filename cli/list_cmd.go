package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type listCmd struct{}

func (c *listCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "list {teams|datasets}",
		Short: "list the configured teams or datasets",
		Args:  cobra.ExactArgs(1),
	}
}

func (c *listCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	switch args[0] {
	case "teams":
		for _, team := range cl.teams {
			fmt.Println(team)
		}
	case "datasets":
		for _, dataset := range cl.datasets {
			fmt.Println(dataset)
		}
	default:
		return errors.Errorf("unknown kind %q, want teams or datasets", args[0])
	}
	return nil
}
