// Command posctl is a terminal till for a running pharmapos server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"pharmapos/internal/client"
	"pharmapos/internal/events"
	"pharmapos/internal/pos"

	"github.com/fatih/color"
)

const lowStockLevel = 5

type itemFlags []string

func (f *itemFlags) String() string { return strings.Join(*f, ",") }

func (f *itemFlags) Set(value string) error {
	*f = append(*f, value)
	return nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "products":
		err = runProducts(ctx, os.Args[2:])
	case "sell":
		err = runSell(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "reset":
		err = runReset(ctx, os.Args[2:], os.Stdin)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: posctl <products|sell|watch|reset> [-server URL] [flags]")
}

func serverFlag(fs *flag.FlagSet) *string {
	def := os.Getenv("PHARMAPOS_URL")
	if def == "" {
		def = "http://localhost:5000"
	}
	return fs.String("server", def, "base URL of the pharmapos server")
}

func runProducts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	server := serverFlag(fs)
	_ = fs.Parse(args)

	products, err := client.New(*server).ListProducts(ctx)
	if err != nil {
		return err
	}

	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	for _, p := range products {
		line := fmt.Sprintf("%4d  %-28s %-14s %8.2f  %5d %s", p.ID, p.Name, p.Category, p.Price, p.Stock, p.Unit)
		switch {
		case p.Stock <= 0:
			red.Println(line)
		case p.Stock <= lowStockLevel:
			yellow.Println(line)
		default:
			fmt.Println(line)
		}
	}
	return nil
}

func runSell(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sell", flag.ExitOnError)
	server := serverFlag(fs)
	var items itemFlags
	fs.Var(&items, "item", "product id and quantity as ID:QTY (repeatable)")
	discount := fs.Float64("discount", 0, "discount amount")
	_ = fs.Parse(args)

	if len(items) == 0 {
		return errors.New("at least one -item is required")
	}

	cart := pos.NewCart(client.New(*server))
	if err := cart.Load(ctx); err != nil {
		return err
	}
	if err := fillCart(ctx, cart, items); err != nil {
		return err
	}
	if *discount != 0 {
		if _, msg := cart.SetDiscount(*discount); msg != "" {
			color.New(color.FgYellow, color.Bold).Fprint(os.Stderr, "! ")
			fmt.Fprintln(os.Stderr, msg)
		}
	}

	for _, line := range cart.Lines() {
		fmt.Printf("  %-28s %3d x %8.2f\n", line.Name, line.Quantity, line.Price)
	}
	totals := cart.Totals()
	fmt.Printf("  %-28s %17.2f\n  %-28s %17.2f\n", "Subtotal", totals.Subtotal, "Discount", totals.Discount)

	receipt, err := cart.Checkout(ctx)
	if err != nil {
		return abandon(ctx, cart, err)
	}
	color.New(color.FgGreen, color.Bold).Printf("  %-28s %17.2f\n", "Total", receipt.Sale.Total)
	color.New(color.FgGreen).Printf("✓ order #%d\n", receipt.ID)
	return nil
}

// fillCart adds every ID:QTY item. On the first bad item the reservations
// already made are given back before the error is returned.
func fillCart(ctx context.Context, cart *pos.Cart, items []string) error {
	for _, raw := range items {
		id, qty, err := parseItem(raw)
		if err != nil {
			return abandon(ctx, cart, err)
		}
		if _, err := cart.Select(id); err != nil {
			return abandon(ctx, cart, fmt.Errorf("item %q: %w", raw, err))
		}
		if err := cart.Add(ctx, id, qty); err != nil {
			return abandon(ctx, cart, fmt.Errorf("item %q: %w", raw, err))
		}
	}
	return nil
}

// abandon cancels the cart even when ctx is already done.
func abandon(ctx context.Context, cart *pos.Cart, err error) error {
	if cancelErr := cart.Cancel(context.WithoutCancel(ctx)); cancelErr != nil {
		return errors.Join(err, fmt.Errorf("release reservations: %w", cancelErr))
	}
	return err
}

func parseItem(raw string) (int64, int, error) {
	idPart, qtyPart, found := strings.Cut(raw, ":")
	if !found {
		qtyPart = "1"
	}
	id, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, fmt.Errorf("invalid item %q", raw)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(qtyPart))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid quantity in %q", raw)
	}
	return id, qty, nil
}

func runWatch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	server := serverFlag(fs)
	_ = fs.Parse(args)

	cyan := color.New(color.FgCyan)
	magenta := color.New(color.FgMagenta)
	blue := color.New(color.FgBlue, color.Bold)
	cyan.Printf("watching %s\n", *server)

	return client.New(*server).Subscribe(ctx, func(ev events.Event) {
		switch ev.Type {
		case events.TypeProductUpdate:
			if u, err := ev.ProductUpdate(); err == nil {
				cyan.Printf("update  ")
				fmt.Printf("#%d %s stock=%d price=%.2f\n", u.Product.ID, u.Product.Name, u.Product.Stock, u.Product.Price)
			}
		case events.TypeProductDeleted:
			if d, err := ev.ProductDeleted(); err == nil {
				magenta.Printf("deleted ")
				fmt.Printf("#%d\n", d.ID)
			}
		case events.TypeDataReset:
			if r, err := ev.DataReset(); err == nil {
				blue.Printf("reset   ")
				fmt.Printf("%s (%s)\n", r.Message, r.Type)
			}
		default:
			fmt.Printf("%s %s\n", ev.Type, string(ev.Data))
		}
	})
}

func runReset(ctx context.Context, args []string, in io.Reader) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	server := serverFlag(fs)
	scope := fs.String("scope", "", "overview, sales, inventory, stock, reports, alerts or all")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	_ = fs.Parse(args)

	if *scope == "" {
		return errors.New("-scope is required")
	}
	if !*yes && !confirm(in, os.Stderr, fmt.Sprintf("Clear %s data on %s?", *scope, *server)) {
		return errResetAborted
	}

	msg, err := client.New(*server).ResetData(ctx, *scope)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Print("✓ ")
	fmt.Println(msg)
	return nil
}

var errResetAborted = errors.New("reset aborted")

// confirm asks a y/N question and reads one answer line from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
