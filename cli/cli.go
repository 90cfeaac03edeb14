// Package cli implements the grading operator's command-line client in the
// usual cobra arrangement: one root command, one file per subcommand.
package cli

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rankmaniac/rankmaniac/cluster"
	"github.com/rankmaniac/rankmaniac/cluster/emr"
	"github.com/rankmaniac/rankmaniac/scheduler"
	"github.com/rankmaniac/rankmaniac/scoreboard"
	"github.com/rankmaniac/rankmaniac/storage"
	s3store "github.com/rankmaniac/rankmaniac/storage/s3"
)

const (
	defaultRegion         = "us-west-2"
	defaultStudentsBucket = "cs144students"
	defaultGradingBucket  = "cs144grading"
)

// CLIClient is the executable command-line client.
type CLIClient interface {
	Exec() error
}

// Implements CLIClient - basic
type simpleCLIClient struct {
	rootCmd *cobra.Command

	region         string
	studentsBucket string
	gradingBucket  string
	teams          []string
	datasets       []string
	infile         string

	scoreboardURL  string
	scoreboardAuth string
	session        int

	// populated by dial
	sess     *session.Session
	cluster  cluster.Client
	students storage.Store
	grading  storage.Store
	board    scoreboard.Scoreboard
	registry *scheduler.JobRegistry
}

func (c *simpleCLIClient) Exec() error {
	return c.rootCmd.Execute()
}

func NewSimpleCLIClient() (CLIClient, error) {
	c := &simpleCLIClient{registry: scheduler.NewJobRegistry()}

	c.rootCmd = &cobra.Command{
		Use:   "rankmaniac",
		Short: "rankmaniac manages and grades map-reduce ranking jobs",
		Run:   func(*cobra.Command, []string) {},
	}

	c.addCmd(&listCmd{})
	c.addCmd(&runCmd{})
	c.addCmd(&killCmd{})
	c.addCmd(&sweepCmd{})
	c.addCmd(&uploadCmd{})
	c.addCmd(&downloadCmd{})

	return c, nil
}

func (c *simpleCLIClient) addCmd(cmd command) {
	cobraCmd := cmd.registerFlags()
	cobraCmd.Flags().StringVar(&c.region, "region", defaultRegion, "AWS region")
	cobraCmd.Flags().StringVar(&c.studentsBucket, "students-bucket", defaultStudentsBucket, "bucket submissions are uploaded to")
	cobraCmd.Flags().StringVar(&c.gradingBucket, "grading-bucket", defaultGradingBucket, "isolated bucket jobs run in")
	cobraCmd.Flags().StringSliceVar(&c.teams, "teams", nil, "team identifiers")
	cobraCmd.Flags().StringSliceVar(&c.datasets, "datasets", nil, "available dataset names")
	cobraCmd.Flags().StringVar(&c.infile, "infile", "", "dataset to run against")
	cobraCmd.Flags().StringVar(&c.scoreboardURL, "scoreboard-url", "", "scoreboard upload endpoint")
	cobraCmd.Flags().StringVar(&c.scoreboardAuth, "scoreboard-auth", "", "scoreboard auth token")
	cobraCmd.Flags().IntVar(&c.session, "session", 0, "scoreboard session identifier")
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.run(c, innerCmd, args)
	}
	c.rootCmd.AddCommand(cobraCmd)
}

// dial sets up the AWS-backed collaborators. Credentials come from the SDK
// default chain (env, shared config, instance role).
func (c *simpleCLIClient) dial() error {
	if c.sess != nil {
		return nil
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(c.region)})
	if err != nil {
		return errors.Wrap(err, "establishing AWS session")
	}
	c.sess = sess
	c.cluster = emr.New(sess, c.gradingBucket)
	c.students = s3store.New(sess, c.studentsBucket)
	c.grading = s3store.New(sess, c.gradingBucket)
	if c.scoreboardURL != "" {
		c.board = scoreboard.NewClient(c.scoreboardURL, c.scoreboardAuth)
	} else {
		c.board = &scoreboard.Recorder{}
	}
	return nil
}

func (c *simpleCLIClient) validTeam(teamID string) bool {
	for _, team := range c.teams {
		if team == teamID {
			return true
		}
	}
	return false
}

func (c *simpleCLIClient) requireInfile() error {
	if c.infile == "" {
		return errors.New("--infile is required")
	}
	if len(c.datasets) > 0 {
		for _, dataset := range c.datasets {
			if dataset == c.infile {
				return nil
			}
		}
		return errors.Errorf("invalid dataset %q, have: %s", c.infile, strings.Join(c.datasets, ", "))
	}
	return nil
}

type command interface {
	registerFlags() *cobra.Command
	run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error
}
