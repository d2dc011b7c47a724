package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vultisig/transfer-tracker/chain"
	"github.com/vultisig/transfer-tracker/internal/api"
	"github.com/vultisig/transfer-tracker/internal/graceful"
	"github.com/vultisig/transfer-tracker/tracker"
)

var errTransferFailed = errors.New("transfer failed")

func serveCmd(opts *rootOptions) *cobra.Command {
	var packetHash string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the status API, optionally tracking a packet hash from the start",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go graceful.HandleSignals(a.logger, a.poller.Stop, cancel)

			eg, ctx := errgroup.WithContext(ctx)
			err = a.startBackground(ctx, eg, true)
			if err != nil {
				return err
			}
			if packetHash != "" {
				err = a.poller.Start(ctx, packetHash)
				if err != nil {
					return fmt.Errorf("a.poller.Start: %w", err)
				}
			}

			<-ctx.Done()
			a.poller.Stop()
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&packetHash, "packet-hash", "", "Packet or transaction hash to track on start")
	return cmd
}

func trackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track <packet_hash>",
		Short: "Follow a transfer on the indexer until it settles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			p, err := newPrinter(os.Stdout, opts.output)
			if err != nil {
				return err
			}
			ctx, cancel := graceful.WithSignals(cmd.Context(), a.logger)
			defer cancel()

			return a.follow(ctx, p, args[0], nil)
		},
	}
	addFailFastFlag(cmd, opts)
	return cmd
}

func submitCmd(opts *rootOptions) *cobra.Command {
	var (
		chainID string
		to      string
		value   string
		data    string
		gas     uint64
		track   bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a transaction, wait for its receipt and follow the transfer",
		RunE: func(cmd *cobra.Command, args []string) error {
			txArgs, err := chain.ParseTxArgs(to, value, data, gas)
			if err != nil {
				return err
			}
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			p, err := newPrinter(os.Stdout, opts.output)
			if err != nil {
				return err
			}
			ctx, cancel := graceful.WithSignals(cmd.Context(), a.logger)
			defer cancel()

			svc, err := a.chainService(ctx)
			if err != nil {
				return err
			}
			flow := tracker.NewFlow(a.logger, svc, a.poller)

			return a.follow(ctx, p, "", func(ctx context.Context) error {
				res, err := flow.Execute(ctx, chainID, txArgs)
				if res != nil {
					if perr := p.Print(resultView(res)); perr != nil {
						return perr
					}
				}
				if err != nil {
					return err
				}
				if !track {
					return errStopFollowing
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&chainID, "chain", "", "Universal chain id of the source chain, e.g. ethereum.11155111")
	cmd.Flags().StringVar(&to, "to", "", "Destination address")
	cmd.Flags().StringVar(&value, "value", "", "Value in wei")
	cmd.Flags().StringVar(&data, "data", "", "Calldata, 0x-prefixed hex")
	cmd.Flags().Uint64Var(&gas, "gas", 0, "Gas limit, 0 to estimate")
	cmd.Flags().BoolVar(&track, "track", true, "Follow the transfer on the indexer after the receipt")
	addFailFastFlag(cmd, opts)
	_ = cmd.MarkFlagRequired("chain")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func tokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the tracking control endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return fmt.Errorf("loadConfig: %w", err)
			}
			if cfg.Api.JWTSecret == "" {
				return errNoJWTSecret
			}
			token, err := api.NewAuthService(cfg.Api.JWTSecret).GenerateToken(subject, ttl)
			if err != nil {
				return fmt.Errorf("GenerateToken: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

var errNoJWTSecret = errors.New("api.jwt_secret is not configured")

var errStopFollowing = errors.New("stop following")

func addFailFastFlag(cmd *cobra.Command, opts *rootOptions) {
	cmd.Flags().BoolVar(&opts.failFast, "fail-fast", false, "Exit non-zero on the first failed record instead of following until success")
}

type resultOutput struct {
	RequestID string         `json:"request_id" yaml:"request_id"`
	Chain     string         `json:"chain" yaml:"chain"`
	TxHash    string         `json:"tx_hash" yaml:"tx_hash"`
	Receipt   *chain.Receipt `json:"receipt" yaml:"receipt"`
}

func resultView(res *tracker.Result) resultOutput {
	return resultOutput{
		RequestID: res.RequestID.String(),
		Chain:     res.ChainID,
		TxHash:    res.Hash.Hex(),
		Receipt:   res.Receipt,
	}
}

// settles reports whether follow ends on o. A failed record may still turn
// successful on a later poll, so it only ends follow when failFast is set.
func settles(o tracker.Outcome, failFast bool) bool {
	switch o {
	case tracker.OutcomeSucceeded:
		return true
	case tracker.OutcomeFailed:
		return failFast
	}
	return false
}

// follow prints every store write until the transfer settles, polling stops or ctx is done.
// With a packet hash it starts polling itself; otherwise start is expected to do so.
func (a *app) follow(ctx context.Context, p *printer, packetHash string, start func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	err := a.startBackground(ctx, eg, false)
	if err != nil {
		return err
	}

	outcome := make(chan tracker.Outcome, 1)
	printErr := make(chan error, 1)
	printObserver := p.observer(printErr)
	_, unsubscribe := a.store.Subscribe(func(snap tracker.Snapshot) {
		printObserver(snap)
		if o := snap.Outcome(); settles(o, a.failFast) {
			select {
			case outcome <- o:
			default:
			}
		}
	})
	defer unsubscribe()

	if packetHash != "" {
		err = a.poller.Start(ctx, packetHash)
		if err != nil {
			return fmt.Errorf("a.poller.Start: %w", err)
		}
	}
	if start != nil {
		err = start(ctx)
		if errors.Is(err, errStopFollowing) {
			a.poller.Stop()
			cancel()
			return eg.Wait()
		}
		if err != nil {
			a.poller.Stop()
			cancel()
			_ = eg.Wait()
			return err
		}
	}

	var result error
	select {
	case <-ctx.Done():
	case err := <-printErr:
		result = err
	case o := <-outcome:
		if o == tracker.OutcomeFailed {
			result = errTransferFailed
		}
	}

	a.poller.Stop()
	cancel()
	if err := eg.Wait(); err != nil && result == nil {
		result = err
	}
	return result
}
