package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-loop-client/adapters/gocommand"
	"github.com/goliatone/go-loop-client/adapters/gojob"
	"github.com/goliatone/go-loop-client/adapters/gologger"
	"github.com/goliatone/go-loop-client/auth"
	"github.com/goliatone/go-loop-client/client"
	"github.com/goliatone/go-loop-client/core"
	"github.com/goliatone/go-loop-client/legal"
	"github.com/goliatone/go-loop-client/migrations"
	"github.com/goliatone/go-loop-client/push"
	"github.com/goliatone/go-loop-client/ratelimit"
	"github.com/goliatone/go-loop-client/security"
	sqlstore "github.com/goliatone/go-loop-client/store/sql"
	"github.com/goliatone/go-loop-client/transport"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const expiryDrainTimeout = 10 * time.Second

const usage = `usage: loopctl <command> [flags]

commands:
  call-url   -caller <id>     create a shareable call url
  calls      -version <n>     list calls for a version
  call-info  -token <token>   fetch session credentials for a call
  legal      [-serve <addr>]  print or serve the localized legal page
  prefs      [-clear <key>]   list or clear stored preferences
  push       -body <body> | -serve <addr>
                              handle a push notification or serve PUT /push
`

// app holds the collaborators shared by every subcommand.
type app struct {
	env     EnvConfig
	out     io.Writer
	loggers glog.LoggerProvider
	logger  glog.Logger

	config   core.Config
	db       *persistence.Client
	factory  *sqlstore.RepositoryFactory
	prefs    *auth.PrefsProvider
	expiries *gojob.MemoryQueue
	client   *client.Client
	bindings *gocommand.Bindings
}

func run(ctx context.Context, args []string, env EnvConfig, stdout io.Writer, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("missing command")
	}
	loggers := newLoggerProvider(stderr, env.Debug)
	a := &app{env: env, out: stdout, loggers: loggers, logger: gologger.Component(loggers, "cli")}

	name, rest := args[0], args[1:]
	switch name {
	case "call-url":
		return a.withClient(ctx, func(ctx context.Context) error { return a.callURL(ctx, rest) })
	case "calls":
		return a.withClient(ctx, func(ctx context.Context) error { return a.calls(ctx, rest) })
	case "call-info":
		return a.withClient(ctx, func(ctx context.Context) error { return a.callInfo(ctx, rest) })
	case "legal":
		return a.legal(ctx, rest)
	case "push":
		return a.withClient(ctx, func(ctx context.Context) error { return a.push(ctx, rest) })
	case "prefs":
		return a.withStore(ctx, func(ctx context.Context) error { return a.listPrefs(ctx, rest) })
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func (a *app) loadConfig(ctx context.Context) error {
	provider := core.NewCfgxConfigProvider(core.NewStaticConfigLoader(a.env.rawConfig()))
	cfg, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return err
	}
	a.config = cfg
	return nil
}

func (a *app) withStore(ctx context.Context, fn func(context.Context) error) error {
	if err := a.loadConfig(ctx); err != nil {
		return err
	}
	if err := a.openStore(ctx); err != nil {
		return err
	}
	defer func() { _ = a.db.Close() }()
	return fn(ctx)
}

func (a *app) withClient(ctx context.Context, fn func(context.Context) error) error {
	return a.withStore(ctx, func(ctx context.Context) error {
		if err := a.buildClient(); err != nil {
			return err
		}
		defer a.bindings.Close()
		if err := fn(ctx); err != nil {
			return err
		}
		return a.drainExpiries(ctx)
	})
}

func (a *app) openStore(ctx context.Context) error {
	driver := strings.TrimSpace(a.env.DBDriver)
	dialectName, err := migrations.DialectForDriver(driver)
	if err != nil {
		return err
	}
	var dialect schema.Dialect = sqlitedialect.New()
	if dialectName == migrations.DialectPostgres {
		dialect = pgdialect.New()
		driver = "postgres"
	}

	sqlDB, err := sql.Open(driver, a.env.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if dialectName == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	db, err := persistence.New(persistenceConfig{driver: driver, dsn: a.env.DBDSN, debug: a.env.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("persistence client: %w", err)
	}
	if err := migrations.Apply(ctx, db, dialectName); err != nil {
		_ = db.Close()
		return err
	}

	opts := []sqlstore.FactoryOption{sqlstore.WithCacheTTL(a.env.PrefCacheTTL)}
	if secrets, err := a.secretProvider(); err != nil {
		_ = db.Close()
		return err
	} else if secrets != nil {
		opts = append(opts, sqlstore.WithSecretProvider(secrets))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(db, opts...)
	if err != nil {
		_ = db.Close()
		return err
	}
	a.db = db
	a.factory = factory
	return nil
}

func (a *app) secretProvider() (core.SecretProvider, error) {
	if strings.TrimSpace(a.env.SecretKey) == "" {
		return nil, nil
	}
	opts := []security.Option{
		security.WithKeyID(a.env.SecretKeyID),
		security.WithVersion(a.env.SecretKeyVersion),
	}
	if strings.TrimSpace(a.env.PreviousSecretKey) != "" {
		opts = append(opts, security.WithPreviousKey([]byte(a.env.PreviousSecretKey), "", 0))
	}
	return security.NewAppKeySecretProviderFromString(a.env.SecretKey, opts...)
}

func (a *app) buildClient() error {
	adapter := ratelimit.NewTransport(transport.NewRESTAdapter(nil), nil)

	var registrar auth.Registrar
	if strings.TrimSpace(a.config.Registration.PushURL) != "" {
		httpRegistrar, err := auth.NewHTTPRegistrar(a.config, adapter)
		if err != nil {
			return err
		}
		registrar = httpRegistrar
	}

	a.expiries = gojob.NewMemoryQueue(8)
	prefs, err := auth.NewPrefsProvider(a.factory.Preferences(), registrar,
		auth.WithLogger(gologger.Component(a.loggers, "auth")),
		auth.WithExpiryNotifier(gojob.NewExpiryNotifier(a.expiries)),
	)
	if err != nil {
		return err
	}
	loop, err := client.New(a.config,
		core.WithAuthProvider(prefs),
		core.WithLoggerProvider(a.loggers),
		core.WithTransport(adapter),
	)
	if err != nil {
		return err
	}
	bindings, err := gocommand.RegisterLoop(gocommand.NewRegistryAdapter(command.NewRegistry()), loop)
	if err != nil {
		return err
	}
	a.prefs = prefs
	a.client = loop
	a.bindings = bindings
	return nil
}

// drainExpiries handles the expiry notifications queued by the command that
// just ran.
func (a *app) drainExpiries(ctx context.Context) error {
	if a.expiries.Len() == 0 {
		return nil
	}
	jobs := gologger.Component(a.loggers, "jobs")
	consumer, err := gojob.NewExpiryConsumer(a.expiries, func(_ context.Context, seconds int64) error {
		a.logger.Info("call url expiry recorded", "expires_in", time.Duration(seconds)*time.Second)
		return nil
	},
		gojob.WithRetryPolicy(worker.DefaultRetryPolicy{
			MaxAttempts: 3,
			Backoff:     worker.BackoffConfig{Strategy: worker.BackoffExponential, Interval: 100 * time.Millisecond, MaxInterval: time.Second},
		}),
		gojob.WithHooks(gojob.NewLoggingHook(jobs)),
		gojob.WithLogger(jobs),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, expiryDrainTimeout)
	defer cancel()
	return consumer.Drain(ctx, a.expiries)
}

func (a *app) callURL(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("call-url", flag.ContinueOnError)
	caller := fs.String("caller", "", "caller id shown to the callee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := gocommand.RequestCallURL(ctx, *caller)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) calls(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("calls", flag.ContinueOnError)
	version := fs.Int("version", -1, "calls version")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version < 0 {
		return core.MissingParameterError("calls_info", "version")
	}
	out, err := gocommand.ListCalls(ctx, *version)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) callInfo(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("call-info", flag.ContinueOnError)
	token := fs.String("token", "", "call token")
	if err := fs.Parse(args); err != nil {
		return err
	}
	out, err := gocommand.RequestCallInfo(ctx, *token)
	if err != nil {
		return err
	}
	return a.print(out)
}

func (a *app) legal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("legal", flag.ContinueOnError)
	addr := fs.String("serve", "", "serve GET /legal on this address instead of printing")
	title := fs.String("title", "Terms of Use", "page title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.loadConfig(ctx); err != nil {
		return err
	}

	var source legal.DocumentSource
	switch {
	case strings.TrimSpace(a.env.DocumentsDir) != "":
		source = legal.NewFSSource(os.DirFS(a.env.DocumentsDir))
	case strings.TrimSpace(a.config.I18n.DocumentsURL) != "":
		source = legal.NewHTTPSource(a.config.I18n.DocumentsURL, nil)
	default:
		return core.MissingParameterError("legal", "documents url or directory")
	}

	page := legal.NewPage(*title)
	loader, err := legal.NewLoader(a.config, source, page, core.WithLoggerProvider(a.loggers))
	if err != nil {
		return err
	}

	if strings.TrimSpace(*addr) != "" {
		return a.serve(ctx, *addr, legal.NewHandler(loader, page))
	}

	result := loader.Load(ctx)
	if !result.Rendered {
		return fmt.Errorf("no legal document could be loaded for %q", result.Lang)
	}
	return page.Render(a.out)
}

func (a *app) push(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("push", flag.ContinueOnError)
	body := fs.String("body", "", "push body to handle once, e.g. version=3")
	addr := fs.String("serve", "", "serve PUT /push on this address")
	window := fs.Duration("burst-window", 2*time.Second, "drop repeated versions inside this window")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reader := push.CallsReaderFunc(func(ctx context.Context, req core.CallsInfoRequest) ([]core.CallSummary, error) {
		if req.Version == nil {
			return nil, core.MissingParameterError("calls_info", "version")
		}
		return gocommand.ListCalls(ctx, *req.Version)
	})
	processor, err := push.NewProcessor(reader, func(_ context.Context, version int, calls []core.CallSummary) error {
		return a.print(map[string]any{"version": version, "calls": calls})
	},
		push.WithBurstController(push.NewBurstController(push.BurstOptions{Mode: push.BurstModeCoalesce, Window: *window})),
		push.WithLogger(gologger.Component(a.loggers, "push")),
	)
	if err != nil {
		return err
	}

	if strings.TrimSpace(*addr) != "" {
		return a.serve(ctx, *addr, push.NewHandler(processor))
	}
	n, err := push.ParseNotification([]byte(*body))
	if err != nil {
		return err
	}
	_, err = processor.Process(ctx, n)
	return err
}

func (a *app) serve(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()
	a.logger.Info("serving", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *app) listPrefs(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prefs", flag.ContinueOnError)
	clearKey := fs.String("clear", "", "preference key to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store := a.factory.Preferences()
	if key := strings.TrimSpace(*clearKey); key != "" {
		return store.ClearPref(ctx, key)
	}
	prefs, err := a.factory.PreferenceStore().List(ctx)
	if err != nil {
		return err
	}
	type row struct {
		Key       string    `json:"key"`
		Value     string    `json:"value"`
		Encrypted bool      `json:"encrypted"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	rows := make([]row, 0, len(prefs))
	for _, pref := range prefs {
		value := pref.Value
		if pref.Key == core.PrefServerToken && value != "" {
			value = core.RedactedValue
		}
		rows = append(rows, row{Key: pref.Key, Value: value, Encrypted: pref.Encrypted, UpdatedAt: pref.UpdatedAt})
	}
	return a.print(rows)
}

func (a *app) print(value any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
