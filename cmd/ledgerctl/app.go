package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"ledgerly/internal/core"
	"ledgerly/internal/forms"
	"ledgerly/internal/ledger"
	"ledgerly/internal/log"
	"ledgerly/internal/session"
	"ledgerly/internal/storage"
	"ledgerly/internal/viewmodel"
)

const profileNamespace = "cli:"

type exporter interface {
	Export(ctx context.Context, txs []core.Transaction) (string, error)
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(a *app, ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = []command{
	{"login", "login -email <email> [-password <password>]", "Log in and remember the session", (*app).login},
	{"register", "register -username <name> -email <email> [-password <password>]", "Create an account and log in", (*app).register},
	{"logout", "logout", "Forget the stored session", (*app).logout},
	{"whoami", "whoami", "Show the logged-in user and token expiry", (*app).whoami},
	{"list", "list [-filter all|income|expense] [-search text] [-sort date|amount] [-order asc|desc]", "List transactions", (*app).list},
	{"stats", "stats", "Show balance, totals and recent transactions", (*app).stats},
	{"income", "income -text <description> -amount <amount> | income <description> <amount>", "Add an income", (*app).income},
	{"expense", "expense -text <description> -amount <amount> | expense <description> <amount>", "Add an expense", (*app).expense},
	{"edit", "edit -id <id> -text <description> -amount <amount> | edit <id> <description> <amount>", "Change a transaction, keeping its sign", (*app).edit},
	{"delete", "delete -id <id> | delete <id>", "Delete a transaction", (*app).remove},
	{"export", "export [list flags]", "Write the listed transactions to Google Sheets", (*app).export},
}

// app wires one profile's session to the API.
type app struct {
	api    ledger.API
	store  *session.Store
	gw     *ledger.Gateway
	logger *log.Logger

	stdin          io.Reader
	stdout, stderr io.Writer

	newExporter func(ctx context.Context) (exporter, error)
}

func newApp(api ledger.API, kv storage.KV, logger *log.Logger, stdin io.Reader, stdout, stderr io.Writer) *app {
	store := session.New(kv, api, logger)
	return &app{
		api:    api,
		store:  store,
		gw:     ledger.NewGateway(api, store, logger),
		logger: logger,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		fs.Usage = func() {
			fmt.Fprintf(a.stderr, "Usage: ledgerctl %s\n", c.usage)
			fs.PrintDefaults()
		}
		if err := a.store.Validate(ctx); err != nil {
			return fmt.Errorf("restore session: %w", err)
		}
		return c.run(a, ctx, fs, args[1:])
	}
	fmt.Fprintf(a.stderr, "Unknown command %q\n\n", args[0])
	a.usage()
	return errUsage
}

func (a *app) usage() {
	fmt.Fprintln(a.stderr, "Usage: ledgerctl <command> [flags]")
	fmt.Fprintln(a.stderr)
	w := tabwriter.NewWriter(a.stderr, 0, 0, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\t%s\n", c.name, c.summary)
	}
	w.Flush()
}

func (a *app) login(ctx context.Context, fs *flag.FlagSet, args []string) error {
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.authenticate(ctx, forms.ModeLogin, core.Credentials{Email: *email, Password: *password})
}

func (a *app) register(ctx context.Context, fs *flag.FlagSet, args []string) error {
	username := fs.String("username", "", "Display name")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (prompted when omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return a.authenticate(ctx, forms.ModeRegister, core.Credentials{Username: *username, Email: *email, Password: *password})
}

func (a *app) authenticate(ctx context.Context, mode forms.Mode, creds core.Credentials) error {
	if creds.Password == "" && creds.Email != "" {
		fmt.Fprint(a.stdout, "Password: ")
		pw, err := readPassword(a.stdin)
		fmt.Fprintln(a.stdout)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		creds.Password = pw
	}
	res := forms.NewAuth(a.api, a.store, 0, a.logger).Submit(ctx, mode, creds)
	return a.report(res)
}

func (a *app) logout(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.store.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !a.store.IsAuthenticated() {
		return errNotLoggedIn
	}
	u := a.store.User()
	fmt.Fprintf(a.stdout, "%s <%s>\n", u.Username, u.Email)
	if exp, ok := session.TokenExpiry(a.store.Token()); ok {
		fmt.Fprintf(a.stdout, "Session valid until %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

func (a *app) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	page, err := a.loadPage(ctx, fs, args)
	if err != nil {
		return err
	}
	v := page.View()
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "ID\tDate\tDescription\tAmount\t")
	for _, tx := range v.Rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", tx.ID, formatDate(tx.CreatedAt), tx.Text, signed(tx.Amount.StringFixed(2)))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\nShowing %d of %d. Current balance: %s\n", len(v.Rows), v.Total, v.Balance.StringFixed(2))
	return nil
}

func (a *app) stats(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	d, err := viewmodel.LoadDashboard(ctx, a.gw)
	if err != nil {
		return err
	}
	if d.AuthLost {
		return errSessionExpired
	}
	if d.Error != "" {
		return errors.New(d.Error)
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Balance\t%s\n", d.Stats.Balance)
	fmt.Fprintf(w, "Income\t%s\n", d.Stats.Income)
	fmt.Fprintf(w, "Expenses\t%s\n", d.Stats.Expenses)
	if err := w.Flush(); err != nil {
		return err
	}
	if d.Empty {
		fmt.Fprintln(a.stdout, "\nNo transactions yet")
		return nil
	}
	fmt.Fprintln(a.stdout, "\nRecent:")
	for _, tx := range d.Recent {
		fmt.Fprintf(a.stdout, "  %s  %s  %s\n", formatDate(tx.CreatedAt), tx.Text, signed(tx.Amount.StringFixed(2)))
	}
	return nil
}

func (a *app) income(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return a.addEntry(ctx, core.Income, fs, args)
}

func (a *app) expense(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return a.addEntry(ctx, core.Expense, fs, args)
}

func (a *app) addEntry(ctx context.Context, kind core.Kind, fs *flag.FlagSet, args []string) error {
	text := fs.String("text", "", "Description")
	amount := fs.String("amount", "", "Amount; the sign is set by the command")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fromArgs(fs, text, amount) {
		fs.Usage()
		return errUsage
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	tx, res := forms.NewEntry(kind, a.gw, 0, a.logger).Submit(ctx, *text, *amount)
	if err := a.report(res); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "  id %s, amount %s\n", tx.ID, signed(tx.Amount.StringFixed(2)))
	return nil
}

func (a *app) edit(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "Transaction id")
	text := fs.String("text", "", "New description")
	amount := fs.String("amount", "", "New amount; the original sign is kept")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fromArgs(fs, id, text, amount) {
		fs.Usage()
		return errUsage
	}
	page, err := a.refresh(ctx, core.DefaultCriteria())
	if err != nil {
		return err
	}
	res := page.SaveEdit(ctx, *id, *text, *amount)
	if err := a.report(res); err != nil {
		return err
	}
	tx, _ := page.Lookup(*id)
	fmt.Fprintf(a.stdout, "Updated %s: %s %s\n", tx.ID, tx.Text, signed(tx.Amount.StringFixed(2)))
	return nil
}

func (a *app) remove(ctx context.Context, fs *flag.FlagSet, args []string) error {
	id := fs.String("id", "", "Transaction id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !fromArgs(fs, id) || *id == "" {
		fs.Usage()
		return errUsage
	}
	page, err := a.refresh(ctx, core.DefaultCriteria())
	if err != nil {
		return err
	}
	if err := page.Delete(ctx, *id); err != nil {
		if ledger.IsAuthFailure(err) {
			return errSessionExpired
		}
		return errors.New(page.Err())
	}
	fmt.Fprintf(a.stdout, "Deleted %s. Current balance: %s\n", *id, page.Balance().StringFixed(2))
	return nil
}

// fromArgs fills dst from positional arguments when none of the flags were
// given. It reports false for a mix of both or a wrong argument count.
func fromArgs(fs *flag.FlagSet, dst ...*string) bool {
	if fs.NArg() == 0 {
		return fs.NFlag() > 0
	}
	if fs.NFlag() > 0 || fs.NArg() != len(dst) {
		return false
	}
	for i, p := range dst {
		*p = fs.Arg(i)
	}
	return true
}

func (a *app) export(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if a.newExporter == nil {
		return errors.New("export is not configured: set GOOGLE_SPREADSHEET_ID and service account credentials")
	}
	page, err := a.loadPage(ctx, fs, args)
	if err != nil {
		return err
	}
	exp, err := a.newExporter(ctx)
	if err != nil {
		return err
	}
	rows := page.Visible()
	rng, err := exp.Export(ctx, rows)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	fmt.Fprintf(a.stdout, "Exported %d transactions to %s\n", len(rows), rng)
	return nil
}

// loadPage parses the list flags and fetches a fresh snapshot.
func (a *app) loadPage(ctx context.Context, fs *flag.FlagSet, args []string) (*viewmodel.TransactionsPage, error) {
	filter := fs.String("filter", string(core.FilterAll), "all, income or expense")
	search := fs.String("search", "", "Case-insensitive description match")
	sortBy := fs.String("sort", string(core.SortByDate), "date or amount")
	order := fs.String("order", string(core.Desc), "asc or desc")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return a.refresh(ctx, core.ParseCriteria(*filter, *search, *sortBy, *order))
}

func (a *app) refresh(ctx context.Context, c core.Criteria) (*viewmodel.TransactionsPage, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	page := viewmodel.NewTransactionsPage(a.gw, a.logger)
	page.SetCriteria(c)
	if err := page.Refresh(ctx); err != nil {
		if ledger.IsAuthFailure(err) {
			return nil, errSessionExpired
		}
		return nil, errors.New(page.Err())
	}
	return page, nil
}

var (
	errNotLoggedIn    = errors.New("not logged in: run `ledgerctl login`")
	errSessionExpired = errors.New("session expired: run `ledgerctl login` again")
)

func (a *app) requireLogin() error {
	if !a.store.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// report prints a form result, turning failures into errors.
func (a *app) report(res forms.Result) error {
	switch {
	case res.AuthLost:
		return errSessionExpired
	case res.Status != forms.Succeeded:
		return errors.New(res.Error)
	case res.Success != "":
		fmt.Fprintln(a.stdout, res.Success)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return s
	}
	return "+" + s
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Pipes and tests.
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
