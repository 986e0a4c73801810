package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"networth/internal/core"
)

func newAccountCmd() *cobra.Command {
	account := &cobra.Command{
		Use:   "account",
		Short: "Manage bank accounts, wallets and credit cards",
	}
	account.AddCommand(newAddBankCmd(), newAddCardCmd(), newListAccountsCmd())
	return account
}

func newAddBankCmd() *cobra.Command {
	var user, name, balance string
	var wallet bool

	cmd := &cobra.Command{
		Use:   "add-bank",
		Short: "Register a bank account or wallet with an opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			if err := requireFlag("name", name); err != nil {
				return err
			}
			opening, err := parseBalance(balance)
			if err != nil {
				return fmt.Errorf("--balance: %w", err)
			}
			kind := core.KindBank
			if wallet {
				kind = core.KindWallet
			}
			return createAccount(cmd, core.Account{
				ID: uuid.NewString(), UserID: user, Kind: kind, Name: name, Balance: opening,
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owner user id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&balance, "balance", "0", "opening balance")
	cmd.Flags().BoolVar(&wallet, "wallet", false, "register a cash wallet instead of a bank account")
	return cmd
}

func newAddCardCmd() *cobra.Command {
	var user, name, limit, used string

	cmd := &cobra.Command{
		Use:   "add-card",
		Short: "Register a credit card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			if err := requireFlag("name", name); err != nil {
				return err
			}
			creditLimit, err := parseBalance(limit)
			if err != nil {
				return fmt.Errorf("--limit: %w", err)
			}
			usedAmount, err := parseBalance(used)
			if err != nil {
				return fmt.Errorf("--used: %w", err)
			}
			if creditLimit.IsNegative() || usedAmount.IsNegative() {
				return fmt.Errorf("--limit and --used must not be negative")
			}
			return createAccount(cmd, core.Account{
				ID: uuid.NewString(), UserID: user, Kind: core.KindCreditCard, Name: name,
				CreditLimit: creditLimit, UsedAmount: usedAmount,
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owner user id (required)")
	cmd.Flags().StringVar(&name, "name", "", "display name (required)")
	cmd.Flags().StringVar(&limit, "limit", "0", "credit limit")
	cmd.Flags().StringVar(&used, "used", "0", "amount already used")
	return cmd
}

func newListAccountsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's accounts and cards with current balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			accounts, err := store.ListAccounts(cmd.Context(), user)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKind\tName\tBalance\tUsed/Limit")
			for _, a := range accounts {
				if a.Kind == core.KindCreditCard {
					fmt.Fprintf(w, "%s\t%s\t%s\t\t%s/%s\n", a.ID, a.Kind, a.Name,
						a.UsedAmount.StringFixed(2), a.CreditLimit.StringFixed(2))
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", a.ID, a.Kind, a.Name, a.Balance.StringFixed(2))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owner user id (required)")
	return cmd
}

func newCategoryCmd() *cobra.Command {
	category := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}

	var user, name string
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", user); err != nil {
				return err
			}
			if err := requireFlag("name", strings.TrimSpace(name)); err != nil {
				return err
			}
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			c := core.Category{ID: uuid.NewString(), UserID: user, Name: strings.TrimSpace(name)}
			if err := store.CreateCategory(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&user, "user", "", "owner user id (required)")
	add.Flags().StringVar(&name, "name", "", "category name (required)")

	var listUser string
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", listUser); err != nil {
				return err
			}
			_, store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			categories, err := store.ListCategories(cmd.Context(), listUser)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tName")
			for _, c := range categories {
				fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&listUser, "user", "", "owner user id (required)")

	category.AddCommand(add, list)
	return category
}

func createAccount(cmd *cobra.Command, a core.Account) error {
	_, store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateAccount(cmd.Context(), a); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), a.ID)
	return nil
}

// parseBalance accepts signed amounts with a dot or comma separator.
func parseBalance(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not a number", s)
	}
	if err := core.ValidateBalance("balance", d); err != nil {
		return decimal.Zero, err
	}
	return core.RoundMoney(d), nil
}
