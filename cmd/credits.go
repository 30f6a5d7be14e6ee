package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	statusadapter "github.com/bnema/afkguard/internal/adapters/render/status"
	"github.com/bnema/afkguard/internal/credit"
	"github.com/bnema/afkguard/internal/domain"
	"github.com/spf13/cobra"
)

const defaultHistoryLimit = 20

func newCreditsCmd(load appLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and adjust stored AFK credit balances",
	}

	cmd.AddCommand(
		newCreditsShowCmd(load),
		newCreditsListCmd(load),
		newCreditsAdjustCmd(load, "give", "Add minutes to a balance", (*credit.Ledger).Give),
		newCreditsAdjustCmd(load, "take", "Remove minutes from a balance", (*credit.Ledger).Take),
		newCreditsAdjustCmd(load, "set", "Set a balance", (*credit.Ledger).Set),
		newCreditsResetCmd(load),
		newCreditsHistoryCmd(load),
	)

	return cmd
}

// withLedger runs fn against an offline ledger and closes the store.
func withLedger(cmd *cobra.Command, load appLoader, fn func(*app, *credit.Ledger) error) error {
	app, err := load(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ledger, err := app.offlineLedger(cmd.Context())
	if err != nil {
		return err
	}
	return fn(app, ledger)
}

// withAdminLedger is withLedger for commands that change balances, which are
// refused while the credit system is disabled.
func withAdminLedger(cmd *cobra.Command, load appLoader, fn func(*credit.Ledger) error) error {
	return withLedger(cmd, load, func(_ *app, ledger *credit.Ledger) error {
		if !ledger.Config().Enabled {
			return fmt.Errorf("set credits.enabled to adjust balances: %w", domain.ErrCreditsDisabled)
		}
		return fn(ledger)
	})
}

func newCreditsShowCmd(load appLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session>",
		Short: "Show one session's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, load, func(app *app, ledger *credit.Ledger) error {
				id := domain.SessionID(args[0])
				acct, ok := ledger.Account(id)
				if !ok {
					return fmt.Errorf("%s: %w", id, domain.ErrAccountNotFound)
				}
				return writeBalances(cmd, app, []statusadapter.Balance{balanceOf(ledger, acct)}, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")

	return cmd
}

func newCreditsListCmd(load appLoader) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every stored balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd, load, func(app *app, ledger *credit.Ledger) error {
				accounts := ledger.Accounts()
				balances := make([]statusadapter.Balance, 0, len(accounts))
				for _, acct := range accounts {
					balances = append(balances, balanceOf(ledger, acct))
				}
				return writeBalances(cmd, app, balances, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")

	return cmd
}

func newCreditsAdjustCmd(load appLoader, use, short string, op func(*credit.Ledger, domain.SessionID, int) domain.AdminResult) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <session> <minutes>",
		Short:   short,
		Example: "  afkguard credits " + use + " steve 30\n  afkguard credits " + use + " -- -steve 30",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := parseMinutes(args[1])
			if err != nil {
				return err
			}
			return withAdminLedger(cmd, load, func(ledger *credit.Ledger) error {
				id := domain.SessionID(args[0])
				before := ledger.Balance(id)
				return writeAdminResult(cmd, id, before, op(ledger, id, minutes))
			})
		},
	}
}

func newCreditsResetCmd(load appLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session>",
		Short: "Reset a balance to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdminLedger(cmd, load, func(ledger *credit.Ledger) error {
				id := domain.SessionID(args[0])
				before := ledger.Balance(id)
				return writeAdminResult(cmd, id, before, ledger.Reset(id))
			})
		},
	}
}

func newCreditsHistoryCmd(load appLoader) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <session>",
		Short: "Show a session's credit transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd, load, func(_ *app, ledger *credit.Ledger) error {
				id := domain.SessionID(args[0])
				txs, err := ledger.History(cmd.Context(), id, limit)
				if errors.Is(err, domain.ErrHistoryUnsupported) {
					return fmt.Errorf("credit history needs the sqlite storage backend: %w", err)
				}
				if err != nil {
					return fmt.Errorf("load credit history: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), statusadapter.RenderHistory(id, txs))
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultHistoryLimit, "Maximum entries to show (0 for all)")

	return cmd
}

func balanceOf(ledger *credit.Ledger, acct domain.CreditAccount) statusadapter.Balance {
	return statusadapter.Balance{
		Account: acct,
		Tier:    ledger.Tier(acct.SessionID),
		Max:     ledger.MaxBalance(acct.SessionID),
	}
}

func writeBalances(cmd *cobra.Command, app *app, balances []statusadapter.Balance, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(balances)
	}

	rendered := statusadapter.Render(balances, statusadapter.RenderOptions{Now: app.now()})
	_, err := fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeAdminResult(cmd *cobra.Command, id domain.SessionID, before int, result domain.AdminResult) error {
	limit := "unlimited"
	if result.Max >= 0 {
		limit = strconv.Itoa(result.Max)
	}
	if !result.Changed {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: balance unchanged at %d min (max %s)\n", id, result.Balance, limit)
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: balance %d -> %d min (max %s)\n", id, before, result.Balance, limit)
	return err
}

func parseMinutes(raw string) (int, error) {
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse minutes %q: %w", raw, err)
	}
	if minutes < 0 {
		return 0, fmt.Errorf("minutes %d: %w", minutes, domain.ErrInvalidAmount)
	}
	return minutes, nil
}
