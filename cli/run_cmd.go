package cli

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rankmaniac/rankmaniac/grading"
	"github.com/rankmaniac/rankmaniac/scoreboard"
)

type runCmd struct {
	maxIter   int
	instances int
}

func (c *runCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "run <team>",
		Short: "stage a team's submission and submit its full job",
		Args:  cobra.ExactArgs(1),
	}
	r.Flags().IntVar(&c.maxIter, "max-iter", grading.DefaultMaxIterations, "iterations to submit")
	r.Flags().IntVar(&c.instances, "instances", 10, "cluster instance count")
	return r
}

func (c *runCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	teamID := args[0]
	if !cl.validTeam(teamID) {
		return errors.Errorf("invalid team %q", teamID)
	}
	if err := cl.requireInfile(); err != nil {
		return err
	}
	if err := cl.dial(); err != nil {
		return err
	}

	grader := grading.NewGrader(cl.cluster, cl.students, cl.grading, teamID, cl.infile).
		SetMaxIterations(c.maxIter).
		SetInstanceCount(c.instances)
	if err := cl.registry.Register(teamID, grader); err != nil {
		return err
	}

	submitted, err := grader.Setup(cmd.Context())
	if err != nil {
		return errors.Wrapf(err, "setting up %s", teamID)
	}
	if !submitted {
		log.Infof("no submission to run for %s", teamID)
		return scoreboard.RecordNoSubmission(cl.board, teamID, cl.session)
	}
	log.Infof("running %s as flow %s", teamID, grader.Driver().Job().FlowID)
	return nil
}
