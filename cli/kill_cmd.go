package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rankmaniac/rankmaniac/cluster"
)

type killCmd struct {
	flowID string
}

func (c *killCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "kill [team]",
		Short: "terminate a team's running job flow",
	}
	r.Flags().StringVar(&c.flowID, "flow", "", "terminate this flow handle directly")
	return r
}

func (c *killCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	if err := cl.dial(); err != nil {
		return err
	}
	if c.flowID != "" {
		return cl.cluster.Terminate(cluster.FlowID(c.flowID))
	}
	if len(args) != 1 {
		return errors.New("kill needs a team argument or --flow")
	}
	grader := cl.registry.Get(args[0])
	if grader == nil {
		return errors.Errorf("no active job for team %q", args[0])
	}
	return grader.Driver().Terminate()
}
