package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
)

// LikedCommand creates the liked command
func LikedCommand() *cli.Command {
	return &cli.Command{
		Name:  "liked",
		Usage: "Manage liked jobs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List liked jobs, most recent first",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-pager",
						Usage: "Disable pager output",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return listLiked(ctx, c.String("config"), c.Bool("no-pager"))
				},
			},
			{
				Name:      "toggle",
				Usage:     "Like a job, or unlike it if it is already liked",
				ArgsUsage: "<job-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "country",
						Usage: "Two letter country code used to look the job up",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return errors.New("expected exactly one job id")
					}
					return toggleLiked(ctx, c.String("config"), c.Args().First(), c.String("country"))
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a job from the liked list",
				ArgsUsage: "<job-id>",
				Action: func(ctx context.Context, c *cli.Command) error {
					if c.Args().Len() != 1 {
						return errors.New("expected exactly one job id")
					}
					return removeLiked(ctx, c.String("config"), c.Args().First())
				},
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return listLiked(ctx, c.String("config"), false)
		},
	}
}

func listLiked(ctx context.Context, configPath string, noPager bool) error {
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.Liked.List(ctx)
	if err != nil {
		return err
	}
	return display(renderLiked(list), noPager)
}

func toggleLiked(ctx context.Context, configPath, jobID, country string) error {
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	// Unliking needs no network round trip.
	liked, err := a.store.Liked.IsLiked(ctx, jobID)
	if err != nil {
		return err
	}
	if liked {
		if _, err := a.store.Liked.Remove(ctx, jobID); err != nil {
			return err
		}
		fmt.Printf("Removed %s from liked jobs\n", jobID)
		return nil
	}

	if err := a.connectAPI(ctx); err != nil {
		return err
	}
	if country == "" {
		country = a.cfg.Search.Country
	}
	job, err := a.client.JobDetails(ctx, jobID, country)
	if err != nil {
		return fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	if err := a.store.Liked.Add(ctx, *job); err != nil {
		return err
	}
	fmt.Printf("Liked %q at %s\n", job.JobTitle, job.EmployerName)
	return nil
}

func removeLiked(ctx context.Context, configPath, jobID string) error {
	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	removed, err := a.store.Liked.Remove(ctx, jobID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("job %s is not in the liked list", jobID)
	}
	fmt.Printf("Removed %s from liked jobs\n", jobID)
	return nil
}
