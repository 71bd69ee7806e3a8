// Command electionctl manages elections on a running clubvote server.
//
//	electionctl --user root list
//	electionctl --user root open "Best Snack" Mochi Dango
//	electionctl --user alice vote ID Mochi
//	electionctl --user root show ID
//	electionctl --user root close ID
//	electionctl --user root destroy ID
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/spf13/pflag"
)

type options struct {
	server   string
	user     string
	password string
	timeout  time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "electionctl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("electionctl", flag.ContinueOnError)
	opts := options{}
	fs.StringVarP(&opts.server, "server", "s", envOr("CLUBVOTE_SERVER", "http://localhost:8080"), "server base URL")
	fs.StringVarP(&opts.user, "user", "u", os.Getenv("CLUBVOTE_USER"), "username to log in as")
	fs.StringVarP(&opts.password, "password", "p", os.Getenv("CLUBVOTE_PASSWORD"), "password (or CLUBVOTE_PASSWORD)")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: electionctl [flags] list | show ID | open TITLE CANDIDATE... | vote ID CANDIDATE | close ID | destroy ID")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	if opts.user == "" {
		return errors.New("--user is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	client, err := NewClient(opts.server)
	if err != nil {
		return err
	}
	if err := client.Login(ctx, opts.user, opts.password); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "list":
		list, err := client.List(ctx)
		if err != nil {
			return err
		}
		renderList(out, list)
	case "show":
		if len(rest) != 1 {
			return errors.New("usage: show ID")
		}
		detail, err := client.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		renderDetail(out, detail)
	case "open":
		if len(rest) < 2 {
			return errors.New("usage: open TITLE CANDIDATE...")
		}
		id, err := client.Open(ctx, rest[0], rest[1:])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
	case "vote":
		if len(rest) != 2 {
			return errors.New("usage: vote ID CANDIDATE")
		}
		return client.Vote(ctx, rest[0], rest[1])
	case "close":
		if len(rest) != 1 {
			return errors.New("usage: close ID")
		}
		return client.Close(ctx, rest[0])
	case "destroy":
		if len(rest) != 1 {
			return errors.New("usage: destroy ID")
		}
		return client.Destroy(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
