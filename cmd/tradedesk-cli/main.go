// Command tradedesk-cli is a thin operator CLI over the tradedesk API.
//
// Usage:
//
//	tradedesk-cli -user u1 place -symbol XYZ -side buy -qty 10
//	tradedesk-cli -user u1 cancel <order-id>
//	tradedesk-cli -user u1 order <order-id>
//	tradedesk-cli -user u1 orders [-scope history]
//	tradedesk-cli -user u1 portfolio
//	tradedesk-cli -user u1 transactions [-limit 20]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"tradedesk/pkg/tradedesk"
)

func main() {
	var (
		baseURL = flag.String("url", envOr("TRADEDESK_URL", "http://localhost:8080"), "API base URL")
		userID  = flag.String("user", os.Getenv("TRADEDESK_USER"), "user ID to act as")
	)
	flag.Parse()

	if *userID == "" {
		log.Fatal("missing -user (or TRADEDESK_USER)")
	}
	if flag.NArg() < 1 {
		log.Fatal("missing command: place | cancel | order | orders | portfolio | transactions")
	}

	client := tradedesk.NewClient(*baseURL, *userID)
	ctx := context.Background()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	var err error
	switch cmd {
	case "place":
		err = runPlace(ctx, client, args)
	case "cancel":
		err = runCancel(ctx, client, args)
	case "order":
		err = runOrder(ctx, client, args)
	case "orders":
		err = runOrders(ctx, client, args)
	case "portfolio":
		err = runPortfolio(ctx, client)
	case "transactions":
		err = runTransactions(ctx, client, args)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runPlace(ctx context.Context, client *tradedesk.Client, args []string) error {
	fs := flag.NewFlagSet("place", flag.ExitOnError)
	symbol := fs.String("symbol", "", "security symbol")
	side := fs.String("side", "buy", "buy or sell")
	otype := fs.String("type", "market", "market or limit")
	qty := fs.String("qty", "", "quantity (decimal)")
	limit := fs.String("limit", "", "limit price (decimal, limit orders only)")
	tif := fs.String("tif", "day", "time in force: day or gtc")
	fs.Parse(args)

	order, err := client.PlaceOrder(ctx, tradedesk.PlaceOrderParams{
		Symbol:      *symbol,
		Side:        *side,
		Type:        *otype,
		Quantity:    *qty,
		LimitPrice:  *limit,
		TimeInForce: *tif,
	})
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runCancel(ctx context.Context, client *tradedesk.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cancel <order-id>")
	}
	order, err := client.CancelOrder(ctx, args[0])
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runOrder(ctx context.Context, client *tradedesk.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: order <order-id>")
	}
	order, err := client.GetOrder(ctx, args[0])
	if err != nil {
		return err
	}
	printOrder(order)
	return nil
}

func runOrders(ctx context.Context, client *tradedesk.Client, args []string) error {
	fs := flag.NewFlagSet("orders", flag.ExitOnError)
	scope := fs.String("scope", "active", "active or history")
	fs.Parse(args)

	var (
		orders []tradedesk.Order
		err    error
	)
	if *scope == "history" {
		orders, err = client.ListOrderHistory(ctx)
	} else {
		orders, err = client.ListActiveOrders(ctx)
	}
	if err != nil {
		return err
	}
	for i := range orders {
		printOrder(&orders[i])
	}
	return nil
}

func runPortfolio(ctx context.Context, client *tradedesk.Client) error {
	p, err := client.GetPortfolio(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("portfolio %s  cash %s (%s)\n", p.ID, p.CashBalance, p.CashDisplay)
	for _, h := range p.Holdings {
		fmt.Printf("  %-36s qty %-12s avg %s\n", h.SecurityID, h.Quantity, h.AveragePrice)
	}
	return nil
}

func runTransactions(ctx context.Context, client *tradedesk.Client, args []string) error {
	fs := flag.NewFlagSet("transactions", flag.ExitOnError)
	limit := fs.Int("limit", 20, "max entries")
	fs.Parse(args)

	txns, err := client.ListTransactions(ctx, *limit)
	if err != nil {
		return err
	}
	for _, t := range txns {
		fmt.Printf("%s  %-4s %-10s qty %-10s @ %-10s = %s (commission %s)\n",
			t.CreatedAt.Format("2006-01-02 15:04:05"), t.Side, t.SecurityID,
			t.Quantity, t.Price, t.AmountDisplay, t.Commission)
	}
	return nil
}

func printOrder(o *tradedesk.Order) {
	limit := ""
	if o.LimitPrice != "" {
		limit = " limit " + o.LimitPrice
	}
	fmt.Printf("%s  %-9s %-4s %-6s qty %s%s  %s\n",
		o.ID, o.Status, o.Side, o.Symbol, o.Quantity, limit, o.TimeInForce)
}
