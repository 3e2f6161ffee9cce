package cmd

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/jobsearch/pkg/config"
	"github.com/rubiojr/jobsearch/pkg/jobs"
	"github.com/rubiojr/jobsearch/pkg/jsearch"
	"github.com/rubiojr/jobsearch/pkg/storage"
)

// searchFlags are shared by the commands that run searches. Empty values fall
// back to the [search] section of the configuration.
func searchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "query",
			Aliases: []string{"q"},
			Usage:   "Search query; positional arguments are joined when unset",
		},
		&cli.IntFlag{
			Name:  "page",
			Usage: "Result page to fetch",
			Value: 1,
		},
		&cli.IntFlag{
			Name:  "num-pages",
			Usage: "Number of pages per request (defaults to [search] num_pages)",
		},
		&cli.StringFlag{
			Name:  "country",
			Usage: "Two letter country code (defaults to [search] country)",
		},
		&cli.StringFlag{
			Name:  "date-posted",
			Usage: "Posting age filter: all, today, 3days, week or month",
		},
	}
}

// paramsFromFlags builds search params for query from the command flags and
// configuration defaults.
func paramsFromFlags(c *cli.Command, cfg *config.Config, query string, profile *storage.Profile) (jobs.Params, error) {
	numPages := c.Int("num-pages")
	if numPages < 1 {
		numPages = cfg.Search.NumPages
	}
	country := c.String("country")
	if country == "" {
		country = cfg.Search.Country
	}
	dp := c.String("date-posted")
	if dp == "" {
		dp = cfg.Search.DatePosted
	}
	datePosted, err := jsearch.ParseDatePosted(dp)
	if err != nil {
		return jobs.Params{}, err
	}
	return jobs.Params{
		Query:      query,
		Page:       c.Int("page"),
		NumPages:   numPages,
		Country:    country,
		DatePosted: datePosted,
		Profile:    profile,
	}, nil
}

func argsQuery(c *cli.Command) string {
	if c.IsSet("query") {
		return c.String("query")
	}
	return strings.Join(c.Args().Slice(), " ")
}
