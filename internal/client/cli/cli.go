package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/fieldsync/internal/client/app"
	"github.com/dmitrijs2005/fieldsync/internal/client/config"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/session"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/spf13/cobra"
)

// Opener builds the application for one command run.
type Opener func(ctx context.Context, cfg *config.Config, events app.Events) (*app.App, error)

type Options struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Open defaults to app.New with a logger writing to Err.
	Open Opener
}

type CLI struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	open   Opener
	args   []string
}

func New(opts Options) *CLI {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	c := &CLI{
		in:     bufio.NewReader(opts.In),
		out:    opts.Out,
		errOut: opts.Err,
		open:   opts.Open,
	}
	if c.open == nil {
		c.open = c.defaultOpen
	}
	return c
}

func (c *CLI) defaultOpen(ctx context.Context, cfg *config.Config, events app.Events) (*app.App, error) {
	log := logging.New(c.errOut, cfg.LogLevel, cfg.LogFormat)
	return app.New(ctx, cfg, app.Options{Events: events, Logger: log})
}

// Execute runs the command line in args (without the program name).
func (c *CLI) Execute(ctx context.Context, args []string) error {
	c.args = args
	root := c.rootCommand()
	root.SetArgs(args)
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	return root.ExecuteContext(ctx)
}

// newApp loads the configuration and opens the application. The caller must
// defer a.Close().
func (c *CLI) newApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(c.args)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	a, err := c.open(ctx, cfg, &printer{w: c.errOut})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func (c *CLI) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fieldsync",
		Short:         "Offline-first field operations client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Parsed by config.Load; declared here so cobra accepts them.
	pf := root.PersistentFlags()
	pf.StringP("config", "c", "", "path to a TOML or JSON config file")
	pf.StringP("server", "a", "", "base URL of the back office API")
	pf.IntP("interval", "i", 0, "online check interval in seconds")
	pf.String("db", "", "path of the local database")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.statusCommand(),
		c.companiesCommand(),
		c.syncCommand(),
		c.resyncCommand(),
		c.verifyCommand(),
		c.pushCommand(),
		c.pendingCommand(),
		c.serverCommand(),
		c.watchCommand(),
		c.voucherCommand(),
		c.authorizeCommand(),
	)
	return root
}

// printer reports application events on the error stream.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) SessionInvalidated(_ context.Context, reason session.Reason) {
	p.printf("Session ended (%s)", reason)
}

func (p *printer) ToLogin(context.Context) {
	p.printf("Run 'fieldsync login' to sign in again")
}

func (p *printer) ConnectionRestored(_ context.Context, snap models.ConnectivitySnapshot) {
	p.printf("Connection restored at %s", snap.EvaluatedAt.Format("15:04:05"))
}

func (p *printer) OutboxPending(_ context.Context, pending map[models.VoucherKind]int) {
	parts := make([]string, 0, len(models.VoucherKinds))
	for _, k := range models.VoucherKinds {
		if n := pending[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", k, n))
		}
	}
	p.printf("Vouchers waiting for upload (%s), run 'fieldsync push' to submit them", strings.Join(parts, ", "))
}

func (p *printer) WentOffline(_ context.Context, snap models.ConnectivitySnapshot) {
	p.printf("Working offline since %s", snap.EvaluatedAt.Format("15:04:05"))
}
