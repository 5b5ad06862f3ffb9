package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/utils"
)

func statusCmd(o *opts) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the payment in progress, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, ok, err := o.store().Load()
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("No payment in progress.")
				return nil
			}
			if s.Expired(time.Now()) {
				fmt.Printf("Payment %s expired at %s.\n", s.ID, s.ExpiresAt.Local().Format(time.RFC1123))
				return o.store().Clear()
			}
			st, err := o.api().PaymentStatus(cmd.Context(), s.ID)
			if err != nil {
				return userError(err)
			}
			fmt.Printf("Payment %s: %s (expires %s)\n", s.ID, st.Status, s.ExpiresAt.Local().Format("15:04:05"))
			return nil
		},
	}
}

func promotionCmd(o *opts) *cobra.Command {
	return &cobra.Command{
		Use:   "promotion",
		Short: "Show the promotion on sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := o.api().Promotion(cmd.Context())
			if err != nil {
				return userError(err)
			}
			fmt.Println(p.Title)
			fmt.Printf("  Price:    R$ %s per coupon\n", p.UnitPrice.StringFixed(2))
			fmt.Printf("  Quantity: %d to %d\n", p.MinQty, p.MaxQty)
			for _, q := range []int{p.MinQty, p.MaxQty} {
				fmt.Printf("  %d coupons: R$ %.2f\n", q, float64(checkout.Amount(q, p.UnitPrice))/100)
			}
			if !p.DrawDate.IsZero() {
				fmt.Printf("  Draw:     %s\n", p.DrawDate.Local().Format("02/01/2006 15:04"))
			}
			return nil
		},
	}
}

func couponsCmd(o *opts) *cobra.Command {
	var page, limit int
	var products []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "coupons [cpf]",
		Short: "List the coupons bought with a CPF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := o.api().Coupons(cmd.Context(), args[0], page, limit, products)
			if errors.Is(err, apperr.ErrNotFound) {
				fmt.Println("No coupons found for this CPF.")
				return nil
			}
			if err != nil {
				return userError(err)
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
			for product, coupons := range out {
				fmt.Fprintf(w, "%s\n", product)
				for _, c := range coupons {
					fmt.Fprintf(w, "  %s\t%s\t%s\n", c.ID, c.PurchaseTimestamp.Local().Format("02/01/2006 15:04"), strings.Join(c.DrawNumbers, " "))
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Coupons per page")
	cmd.Flags().StringSliceVarP(&products, "product", "p", nil, "Restrict to these products")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func resultsCmd(o *opts) *cobra.Command {
	return &cobra.Command{
		Use:   "results [promotion-id]",
		Short: "List past draws, or the winners of one promotion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := o.api()
			if len(args) == 0 {
				list, err := api.Results(cmd.Context())
				if err != nil {
					return userError(err)
				}
				for _, p := range list {
					fmt.Printf("%s\t%s\t%s\n", p.ID, p.DrawDate.Local().Format("02/01/2006"), p.Title)
				}
				return nil
			}
			draws, err := api.Result(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			for _, d := range draws {
				fmt.Printf("%d. %s\n", d.Order, d.Description)
				for _, w := range d.Winners {
					fmt.Printf("   %s (%s) coupon %s\n", w.Name, w.City, w.Coupon)
				}
			}
			return nil
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := utils.HashPassword(args[0], cost)
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func gatewayTokenCmd() *cobra.Command {
	var ttl int
	cmd := &cobra.Command{
		Use:   "gateway-token",
		Short: "Issue the bearer token the Pix gateway sends with webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("WEBHOOK_JWT_SECRET")
			if secret == "" {
				return errors.New("WEBHOOK_JWT_SECRET is not set")
			}
			at, err := utils.NewAccessToken(secret, "pix-gateway", utils.RoleGateway, ttl)
			if err != nil {
				return err
			}
			fmt.Println(at.Token)
			return nil
		},
	}
	cmd.Flags().IntVar(&ttl, "ttl-min", 60*24*365, "Token lifetime in minutes")
	return cmd
}
