package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"khata/internal/amqp"
	"khata/internal/cli"
	"khata/internal/core"
	klog "khata/internal/log"
	"khata/internal/services"
)

const usage = `usage: khata <command> [flags]

commands:
  ensure-today                  create today's balance snapshot if missing
  repair [-from YYYY-MM-DD]     recompute balances, from the earliest date by default
  balance -date YYYY-MM-DD      print the snapshot of a day
  day -date YYYY-MM-DD          print the categorized cash book of a day
  parties                       list parties with their balances
  publish-repair [-from DATE]   ask the worker to recompute balances
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), klog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "publish-repair":
		// only needs the queue, not the database
		err = publishRepair(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, args)
	case "ensure-today", "repair", "balance", "day", "parties":
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		svc := cli.InitLedgerService(logger, cfg, repo, nil)
		err = run(ctx, svc, cmd, args)
		if cerr := svc.Close(); cerr != nil {
			logger.Warn("Failed to close ledger service", "error", cerr)
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *services.LedgerService, cmd string, args []string) error {
	switch cmd {
	case "ensure-today":
		created, err := svc.EnsureToday(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("created: %t\n", created)
		return nil

	case "repair":
		fs := flag.NewFlagSet("repair", flag.ExitOnError)
		from := fs.String("from", "", "first date to recompute (YYYY-MM-DD)")
		fs.Parse(args)

		d, err := optionalDate(*from)
		if err != nil {
			return err
		}
		r := <-svc.RepropagateAsync(ctx, d)
		if r.Err != nil {
			return r.Err
		}
		fmt.Printf("anchor=%s visited=%d written=%d\n", r.Result.Anchor, r.Result.Visited, r.Result.Written)
		return nil

	case "balance":
		fs := flag.NewFlagSet("balance", flag.ExitOnError)
		date := fs.String("date", "", "day to print (YYYY-MM-DD)")
		fs.Parse(args)

		d, err := core.ParseDate(*date)
		if err != nil {
			return err
		}
		b, ok, err := svc.BalanceForDate(ctx, d)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Printf("%s: no snapshot\n", d)
			return nil
		}
		fmt.Printf("%s opening %s closing %s manual=%t\n", d, b.Opening, b.Closing, b.OpeningManual)
		return nil

	case "day":
		fs := flag.NewFlagSet("day", flag.ExitOnError)
		date := fs.String("date", "", "day to print (YYYY-MM-DD)")
		fs.Parse(args)

		d, err := core.ParseDate(*date)
		if err != nil {
			return err
		}
		day, err := svc.CashBookDay(ctx, d)
		if err != nil {
			return err
		}
		for _, e := range day.Entries {
			fmt.Printf("%-8s %-15s %12s  %-20s %s\n", e.Entry.Mode, e.Bucket, e.Entry.Amount, e.Entry.PartyLabel, e.Entry.Note)
		}
		if day.Balance != nil {
			fmt.Printf("opening %s closing %s\n", day.Balance.Opening, day.Balance.Closing)
		}
		return nil

	case "parties":
		parties, err := svc.ListParties(ctx)
		if err != nil {
			return err
		}
		for _, p := range parties {
			pb, err := svc.PartyBalance(ctx, p.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%5d %-30s %-8s net %s\n", p.ID, p.Name, p.Role, pb.Net)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func publishRepair(ctx context.Context, url, exchange, queue string, args []string) error {
	fs := flag.NewFlagSet("publish-repair", flag.ExitOnError)
	from := fs.String("from", "", "first date to recompute (YYYY-MM-DD), empty for all")
	reason := fs.String("reason", "manual", "free text stored with the request")
	fs.Parse(args)

	if url == "" {
		return errors.New("AMQP_URL is not set")
	}
	d, err := optionalDate(*from)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(url, exchange, queue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	req := amqp.NewPropagationRequest(d, *reason)
	if err := client.PublishPropagation(ctx, req); err != nil {
		return err
	}
	fmt.Printf("published %s (from %s)\n", req.ID, req.Key())
	return nil
}

func optionalDate(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}
