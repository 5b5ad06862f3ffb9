package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/buyer"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
)

func buyCmd(o *opts) *cobra.Command {
	var order checkout.Order
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy coupons, or resume the payment left in progress",
		Long: `Registers the order, shows the Pix QR code and waits for the payment.

If a previous run left a payment that has not expired yet, that payment is
resumed instead and no new charge is created. Suspending the process
(Ctrl-Z) for longer than the abandon threshold asks, on return, whether to
give up the purchase.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			flow := newFlow(o)
			tracker := buyer.NewVisibilityTracker(o.cfg.AbandonThreshold, askAbandon, flow.Abandon)
			tracker.Activate()
			defer tracker.Deactivate()
			go watchSuspend(ctx, tracker)

			st, err := flow.Run(ctx, order)
			if errors.Is(err, context.Canceled) {
				fmt.Println("\nInterrupted. Run `raffle buy` again to resume this payment.")
				return nil
			}
			if err != nil {
				return userError(err)
			}
			report(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&order.CPF, "cpf", "", "Buyer CPF (11 digits)")
	cmd.Flags().StringVar(&order.Phone, "phone", "", "Phone with area code")
	cmd.Flags().IntVarP(&order.Quantity, "quantity", "q", 1, "Number of coupons")
	return cmd
}

func newFlow(o *opts) *buyer.Flow {
	return &buyer.Flow{
		Server:       o.api(),
		Store:        o.store(),
		PollInterval: o.cfg.PollInterval,
		OnCharge:     showCharge,
		OnStatus: func(s buyer.PaymentStatus) {
			fmt.Printf("  %s payment %s\n", time.Now().Format("15:04:05"), s.Status)
		},
	}
}

func showCharge(s buyer.ClientSession) {
	fmt.Printf("Pay with Pix before %s\n\n", s.ExpiresAt.Local().Format("15:04:05"))
	if s.QRCode != "" {
		if q, err := qrcode.New(s.QRCode, qrcode.Medium); err == nil {
			fmt.Println(q.ToSmallString(false))
		}
		fmt.Printf("Pix copy-and-paste code:\n%s\n\n", s.QRCode)
	}
	fmt.Println("Waiting for payment...")
}

func askAbandon(away time.Duration) bool {
	fmt.Printf("\nYou were away for %s. Abandon this purchase? [y/N] ", away.Round(time.Second))
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func report(st checkout.State) {
	switch st {
	case checkout.StateCompleted:
		fmt.Println("Payment received. Your coupons are confirmed; look them up with `raffle coupons`.")
	case checkout.StateExpired:
		fmt.Println("The payment window closed. No charge was made; run `raffle buy` to try again.")
	case checkout.StateAbandoned:
		fmt.Println("Purchase abandoned.")
	}
}

// userError keeps the message of a validation error and replaces every
// other kind with a short retry hint.
func userError(err error) error {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return errors.New(apperr.Reason(err, "invalid input"))
	case errors.Is(err, apperr.ErrNotFound):
		return fmt.Errorf("nothing found")
	case errors.Is(err, apperr.ErrGatewayTimeout), errors.Is(err, apperr.ErrUpstreamUnavailable):
		return fmt.Errorf("service temporarily unavailable, please try again")
	}
	return err
}
