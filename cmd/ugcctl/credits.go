package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ugcvideo/internal/domain"
)

var (
	creditUserID  string
	creditEmail   string
	creditAmount  int
	creditType    string
	creditNote    string
	creditHistory int
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust user credit balances",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to a user, creating the user by email if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		if creditAmount <= 0 {
			return errors.New("--amount must be positive")
		}
		txType := domain.CreditTxType(strings.ToLower(strings.TrimSpace(creditType)))
		switch txType {
		case domain.CreditTxTopUp, domain.CreditTxAdjustment:
		default:
			return fmt.Errorf("unsupported --type %q (topup or adjustment)", creditType)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		st, err := openStores(ctx, "credits-grant")
		if err != nil {
			return err
		}
		defer st.close()

		userID, err := resolveUser(ctx, st)
		if err != nil {
			return err
		}
		balance, err := st.ledger.Grant(ctx, userID, creditAmount, txType, creditNote)
		if err != nil {
			return fmt.Errorf("grant credits: %w", err)
		}
		fmt.Printf("granted %d credits to %s, balance now %d\n", creditAmount, userID, balance)
		return nil
	},
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's balance and recent ledger entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		st, err := openStores(ctx, "credits-show")
		if err != nil {
			return err
		}
		defer st.close()

		userID, err := resolveUser(ctx, st)
		if err != nil {
			return err
		}
		balance, err := st.ledger.Balance(ctx, userID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}
		fmt.Printf("user %s balance %d\n", userID, balance)
		if creditHistory <= 0 {
			return nil
		}

		items, err := st.ledger.History(ctx, userID, creditHistory)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CREATED\tTYPE\tAMOUNT\tBALANCE\tGENERATION\tDESCRIPTION")
		for _, tx := range items {
			fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%s\t%s\n",
				tx.CreatedAt.Format(time.RFC3339), tx.Type, tx.Amount, tx.BalanceAfter, tx.GenerationID, tx.Description)
		}
		return tw.Flush()
	},
}

// resolveUser picks the user from --id, or upserts one from --email.
func resolveUser(ctx context.Context, st *stores) (string, error) {
	if id := strings.TrimSpace(creditUserID); id != "" {
		return id, nil
	}
	email := strings.ToLower(strings.TrimSpace(creditEmail))
	if email == "" {
		return "", errors.New("either --id or --email must be provided")
	}
	id, _, err := st.ledger.EnsureUser(ctx, email)
	if err != nil {
		return "", fmt.Errorf("lookup user %s: %w", email, err)
	}
	return id, nil
}

func init() {
	for _, c := range []*cobra.Command{creditsGrantCmd, creditsShowCmd} {
		c.Flags().StringVar(&creditUserID, "id", "", "user ID (UUID)")
		c.Flags().StringVar(&creditEmail, "email", "", "user email")
	}
	creditsGrantCmd.Flags().IntVar(&creditAmount, "amount", 0, "credits to add")
	creditsGrantCmd.Flags().StringVar(&creditType, "type", string(domain.CreditTxTopUp), "ledger entry type (topup or adjustment)")
	creditsGrantCmd.Flags().StringVar(&creditNote, "note", "", "description stored with the ledger entry")
	creditsShowCmd.Flags().IntVar(&creditHistory, "history", 10, "number of ledger entries to print")

	creditsCmd.AddCommand(creditsGrantCmd, creditsShowCmd)
	rootCmd.AddCommand(creditsCmd)
}
