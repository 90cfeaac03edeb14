package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rankmaniac/rankmaniac/storage"
)

type uploadCmd struct {
	dir string
}

func (c *uploadCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "upload <team>",
		Short: "replace a team's submission with the files in a local directory",
		Args:  cobra.ExactArgs(1),
	}
	r.Flags().StringVar(&c.dir, "dir", "data", "directory to upload files from")
	return r
}

func (c *uploadCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	if err := cl.dial(); err != nil {
		return err
	}
	// Refuse while a job is registered: uploading clears ongoing results.
	if grader := cl.registry.Get(args[0]); grader != nil && !grader.Driver().Job().State.Terminal() {
		return errors.Errorf("%s has a job running, refusing to clear its namespace", args[0])
	}
	return storage.Upload(cl.students, args[0], c.dir)
}

type downloadCmd struct {
	dir string
}

func (c *downloadCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "download <team>",
		Short: "download a team's grading results to a local directory",
		Args:  cobra.ExactArgs(1),
	}
	r.Flags().StringVar(&c.dir, "dir", "results", "directory to download into")
	return r
}

func (c *downloadCmd) run(cl *simpleCLIClient, cmd *cobra.Command, args []string) error {
	if err := cl.dial(); err != nil {
		return err
	}
	return storage.Download(cl.grading, args[0], c.dir)
}
