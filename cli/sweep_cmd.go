package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rankmaniac/rankmaniac/common/stats"
	"github.com/rankmaniac/rankmaniac/grading"
	"github.com/rankmaniac/rankmaniac/scheduler"
	"github.com/rankmaniac/rankmaniac/scoreboard"
)

type sweepCmd struct {
	referenceFile  string
	topN           int
	maxPenaltyRank int
	maxIter        int
	instances      int
}

func (c *sweepCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "sweep",
		Short: "run every team's submission and poll all jobs to completion",
	}
	r.Flags().StringVar(&c.referenceFile, "reference", "", "file with the reference ranking, one id per line")
	r.Flags().IntVar(&c.topN, "topn", 20, "ranking positions that are scored")
	r.Flags().IntVar(&c.maxPenaltyRank, "max-penalty-rank", 1000, "per-entry penalty rank for ids missing from the reference")
	r.Flags().IntVar(&c.maxIter, "max-iter", grading.DefaultMaxIterations, "iterations to submit per team")
	r.Flags().IntVar(&c.instances, "instances", 10, "cluster instance count per team")
	return r
}

func (c *sweepCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	if len(cl.teams) == 0 {
		return errors.New("--teams is required")
	}
	if err := cl.requireInfile(); err != nil {
		return err
	}
	reference, err := c.loadReference()
	if err != nil {
		return err
	}
	if err := cl.dial(); err != nil {
		return err
	}

	// Set up every team first; teams without a submission get their
	// sentinel recorded immediately and are excluded from the sweep.
	var active []string
	for _, teamID := range cl.teams {
		grader := grading.NewGrader(cl.cluster, cl.students, cl.grading, teamID, cl.infile).
			SetMaxIterations(c.maxIter).
			SetInstanceCount(c.instances)
		if err := cl.registry.Register(teamID, grader); err != nil {
			log.Warnf("skipping %s: %s", teamID, err)
			continue
		}
		submitted, err := grader.Setup(cmd.Context())
		if err != nil {
			log.Errorf("setup failed for %s: %s", teamID, err)
			if rerr := scoreboard.RecordInvalidSubmission(cl.board, teamID, cl.session); rerr != nil {
				log.Errorf("recording invalid submission for %s: %s", teamID, rerr)
			}
			continue
		}
		if !submitted {
			log.Infof("no submission to run for %s", teamID)
			if rerr := scoreboard.RecordNoSubmission(cl.board, teamID, cl.session); rerr != nil {
				log.Errorf("recording no submission for %s: %s", teamID, rerr)
			}
			continue
		}
		active = append(active, teamID)
	}

	scoring := scheduler.ScoringConfig{
		Reference:      reference,
		TopN:           c.topN,
		MaxPenaltyRank: c.maxPenaltyRank,
		Session:        cl.session,
	}
	sched := scheduler.NewPollingScheduler(cl.registry, cl.board, scoring, stats.DefaultStatsReceiver())
	outcomes, err := sched.Sweep(cmd.Context(), active)
	for teamID, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Printf("%-15s failed: %s\n", teamID, outcome.Err)
			continue
		}
		fmt.Printf("%-15s runtime %ds penalty %ds\n", teamID, outcome.Record.RuntimeSeconds, outcome.Record.PenaltySeconds)
	}
	return err
}

func (c *sweepCmd) loadReference() ([]string, error) {
	if c.referenceFile == "" {
		return nil, errors.New("--reference is required")
	}
	contents, err := os.ReadFile(c.referenceFile)
	if err != nil {
		return nil, errors.Wrap(err, "reading reference ranking")
	}
	var reference []string
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			reference = append(reference, line)
		}
	}
	return reference, nil
}
