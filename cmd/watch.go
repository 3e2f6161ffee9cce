package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/jobsearch/pkg/jobs"
)

// WatchCommand creates the watch command
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Search interactively, one query per line from stdin",
		Description: "Every line typed is treated as the new content of the search box. " +
			"Queries are debounced, so fast typing only searches for the last line.",
		Flags: searchFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return watchSearch(ctx, c, os.Stdin, os.Stdout)
		},
	}
}

func watchSearch(ctx context.Context, c *cli.Command, in io.Reader, out io.Writer) error {
	a, err := openApp(ctx, c.String("config"), true)
	if err != nil {
		return err
	}
	defer a.Close()

	profile := a.profile(ctx)
	initial, err := paramsFromFlags(c, a.cfg, argsQuery(c), profile)
	if err != nil {
		return err
	}

	coord := jobs.New(a.exec, a.client,
		jobs.WithDebounce(a.cfg.Search.Debounce.Duration),
		jobs.WithFallback(a.cfg.Search.FallbackQuery),
	)
	defer coord.Close()

	id, results := coord.Subscribe()
	defer coord.Unsubscribe(id)
	coord.Update(initial)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// After stdin closes, wait for the pending query to settle and exit.
	var drain <-chan time.Time
	draining := false
	var last jobs.Result
	show := func(res jobs.Result) {
		last = res
		fmt.Fprint(out, renderResult(res, a.likedIDs(ctx)))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				drain = time.After(a.cfg.Search.Debounce.Duration + 50*time.Millisecond)
				continue
			}
			p := initial
			p.Query = line
			coord.Update(p)
		case <-drain:
			draining = true
			if cur := coord.Current(); !cur.IsLoading {
				if cur.Key != last.Key || cur.IsLoading != last.IsLoading || !cur.UpdatedAt.Equal(last.UpdatedAt) {
					show(cur)
				}
				return nil
			}
		case res, ok := <-results:
			if !ok {
				return nil
			}
			show(res)
			if draining && !res.IsLoading {
				return nil
			}
		}
	}
}
