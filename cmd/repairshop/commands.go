package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/repairshop-client/api"
	"github.com/jrsteele09/repairshop-client/auth"
	"github.com/jrsteele09/repairshop-client/internal/utils"
	"github.com/jrsteele09/repairshop-client/repairshop"
	"github.com/jrsteele09/repairshop-client/token"
	"github.com/jrsteele09/repairshop-client/ui"
	"github.com/pkg/errors"
)

var (
	errUsage    = errors.New("usage")
	errReported = errors.New("reported")
)

const usage = `usage: repairshop <command> [flags]

commands:
  login  -email <email> [-password <password>]
  whoami
  logout
  dashboard
  orders [-skip n] [-take n]
  status <orderId> <status>
  get    <path> [key=value ...]
  watch`

type command func(ctx context.Context, a *app, args []string, stdin io.Reader) error

var commands = map[string]command{
	"login":     loginCommand,
	"whoami":    whoamiCommand,
	"logout":    logoutCommand,
	"dashboard": dashboardCommand,
	"orders":    ordersCommand,
	"status":    statusCommand,
	"get":       getCommand,
	"watch":     watchCommand,
}

// dispatch runs the named command. Failures are reported on the app's
// notifier as well as returned.
func dispatch(ctx context.Context, a *app, args []string, stdin io.Reader) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errors.Wrapf(errUsage, "unknown command %q", args[0])
	}
	err := cmd(ctx, a, args[1:], stdin)
	if err != nil && !errors.Is(err, errUsage) && !errors.Is(err, errReported) {
		api.ReportAPIError(a.notifier, "Command failed", err)
	}
	return err
}

func loginCommand(ctx context.Context, a *app, args []string, stdin io.Reader) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	if *password == "" {
		fmt.Fprint(a.out, "Password: ")
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read password")
		}
		*password = strings.TrimSpace(line)
	}

	if err := a.service.Login(ctx, *email, *password); err != nil {
		// 401 is silent everywhere else; here it is the answer.
		a.notifier.Notify(ui.LevelError, "Sign in failed", api.ToProblemDetails(err).Text())
		return fmt.Errorf("%w: %w", errReported, err)
	}
	user := a.service.CurrentUser()
	a.notifier.Notify(ui.LevelSuccess, "Signed in", fmt.Sprintf("%s (%s)", user.DisplayName, user.Role))
	return nil
}

func whoamiCommand(ctx context.Context, a *app, _ []string, _ io.Reader) error {
	if !a.service.IsAuthenticated() {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	user := a.service.CurrentUser()
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\nshop: %s\n", user.DisplayName, user.Email, user.Role, user.ShopID)
	if remaining, ok := token.Remaining(a.store.Get(ctx).Token); ok {
		fmt.Fprintf(a.out, "expires in: %s\n", remaining.Round(time.Second))
	}
	return nil
}

func logoutCommand(ctx context.Context, a *app, _ []string, _ io.Reader) error {
	if err := a.service.Logout(ctx); err != nil {
		return err
	}
	a.notifier.Notify(ui.LevelInfo, "Signed out", "")
	return nil
}

func dashboardCommand(ctx context.Context, a *app, _ []string, _ io.Reader) error {
	summary, err := a.shop.Dashboard.Summary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "orders: %d total, %d open, %d ready, %d delivered, %d cancelled\n",
		summary.TotalOrders, summary.OpenOrders, summary.ReadyOrders, summary.DeliveredOrders, summary.CancelledOrders)
	fmt.Fprintf(a.out, "payments: %.2f %s\n", summary.TotalPaymentsAmount, utils.Value(summary.PaymentsCurrency))
	return nil
}

func ordersCommand(ctx context.Context, a *app, args []string, _ io.Reader) error {
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	fs.SetOutput(a.out)
	skip := fs.Int("skip", 0, "orders to skip")
	take := fs.Int("take", 20, "orders to return")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}

	orders, err := a.shop.Orders.List(ctx, api.Page{Skip: *skip, Take: *take})
	if err != nil {
		return err
	}
	for _, o := range orders {
		fmt.Fprintf(a.out, "%s  %-10s  %s\n", o.ID, o.Status, o.IssueDescription)
	}
	return nil
}

func statusCommand(ctx context.Context, a *app, args []string, _ io.Reader) error {
	if len(args) != 2 {
		return errors.Wrap(errUsage, "status <orderId> <status>")
	}
	status, err := repairshop.ParseOrderStatus(args[1])
	if err != nil {
		return err
	}
	result, err := a.shop.Orders.ChangeStatus(ctx, args[0], repairshop.StatusChange{Status: status})
	if err != nil {
		return err
	}
	a.notifier.Notify(ui.LevelSuccess, fmt.Sprintf("%s -> %s", result.FromStatus, result.ToStatus), result.SuggestedMessage)
	return nil
}

// getCommand fetches any API path and prints the unwrapped data.
func getCommand(ctx context.Context, a *app, args []string, _ io.Reader) error {
	if len(args) == 0 {
		return errors.Wrap(errUsage, "get <path> [key=value ...]")
	}
	query := url.Values{}
	for _, kv := range args[1:] {
		k, v, _ := strings.Cut(kv, "=")
		query.Add(k, v)
	}

	data, err := api.Get[json.RawMessage](ctx, a.service.Client(), args[0], query)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// watchCommand keeps the session alive until ctx is done, printing every
// change of state whatever its origin.
func watchCommand(ctx context.Context, a *app, _ []string, _ io.Reader) error {
	unsubscribe := a.service.OnChange(func(s auth.State) {
		if s.Authenticated {
			a.notifier.Notify(ui.LevelInfo, "Session active", s.User.DisplayName)
			return
		}
		a.notifier.Notify(ui.LevelWarning, "Signed out", "")
	})
	defer unsubscribe()

	a.router.OnNavigate = func(path string) {
		if path == ui.LoginPath {
			a.notifier.Notify(ui.LevelInfo, "Run `repairshop login` to sign in again", "")
		}
	}

	a.service.Start(ctx)
	if a.service.IsAuthenticated() {
		a.notifier.Notify(ui.LevelInfo, "Watching session", a.service.CurrentUser().DisplayName)
	} else {
		a.notifier.Notify(ui.LevelInfo, "Watching session", "not signed in")
	}
	<-ctx.Done()
	return nil
}
