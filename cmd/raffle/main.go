package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/pix-raffle-checkout/internal/buyer"
	"github.com/iliyamo/pix-raffle-checkout/internal/config"
)

var Version = "dev"

// opts holds the persistent flags shared by every subcommand.
type opts struct {
	cfg config.BuyerConfig
}

func (o *opts) api() *buyer.API {
	return buyer.NewAPI(o.cfg.ServerURL, o.cfg.RequestTimeout)
}

func (o *opts) store() *buyer.FileStore {
	return buyer.NewFileStore(o.cfg.SessionPath)
}

func main() {
	_ = godotenv.Load()
	o := &opts{cfg: config.LoadBuyerConfig()}

	rootCmd := &cobra.Command{
		Use:          "raffle",
		Short:        "Buy raffle coupons with Pix and look up coupons and results",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&o.cfg.ServerURL, "server", o.cfg.ServerURL, "Checkout server URL")
	rootCmd.PersistentFlags().StringVar(&o.cfg.SessionPath, "session", o.cfg.SessionPath, "File keeping the in-flight payment")

	rootCmd.AddCommand(buyCmd(o))
	rootCmd.AddCommand(statusCmd(o))
	rootCmd.AddCommand(promotionCmd(o))
	rootCmd.AddCommand(couponsCmd(o))
	rootCmd.AddCommand(resultsCmd(o))
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(gatewayTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
