package cmd

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/jobsearch/pkg/jobs"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search job listings",
		ArgsUsage: "[query]",
		Description: "Searches for the given query. Without a query the desired job title " +
			"from your profile is used, and without a profile the configured fallback query.",
		Flags: append(searchFlags(),
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Disable pager output",
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			return searchJobs(ctx, c)
		},
	}
}

func searchJobs(ctx context.Context, c *cli.Command) error {
	a, err := openApp(ctx, c.String("config"), true)
	if err != nil {
		return err
	}
	defer a.Close()

	params, err := paramsFromFlags(c, a.cfg, argsQuery(c), a.profile(ctx))
	if err != nil {
		return err
	}

	res := jobs.FetchOnce(ctx, a.exec, a.client, params, a.cfg.Search.FallbackQuery)
	a.logger.Debugf("search %q: phase=%s jobs=%d", res.Query, res.Phase(), len(res.Jobs))

	return display(renderResult(res, a.likedIDs(ctx)), c.Bool("no-pager"))
}
