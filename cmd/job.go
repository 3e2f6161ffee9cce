package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

// JobCommand creates the job command
func JobCommand() *cli.Command {
	return &cli.Command{
		Name:      "job",
		Usage:     "Show the full details of a job listing",
		ArgsUsage: "<job-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "country",
				Usage: "Two letter country code (defaults to [search] country)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return errors.New("expected exactly one job id")
			}
			return showJob(ctx, c.String("config"), c.Args().First(), c.String("country"))
		},
	}
}

func showJob(ctx context.Context, configPath, jobID, country string) error {
	a, err := openApp(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if country == "" {
		country = a.cfg.Search.Country
	}
	job, err := a.client.JobDetails(ctx, jobID, country)
	if err != nil {
		return fmt.Errorf("fetching job %s: %w", jobID, err)
	}

	liked, err := a.store.Liked.IsLiked(ctx, job.JobID)
	if err != nil {
		a.logger.Warnf("checking liked state: %v", err)
	}
	fmt.Println(renderJob(*job, 0, liked, true))
	return nil
}
