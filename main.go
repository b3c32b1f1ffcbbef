package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/config"
	"github.com/lotas/tabheinzel/internal/daemon"
	"github.com/lotas/tabheinzel/internal/domain"
	"github.com/lotas/tabheinzel/internal/export"
	"github.com/lotas/tabheinzel/internal/firefox"
	"github.com/lotas/tabheinzel/internal/important"
	"github.com/lotas/tabheinzel/internal/organize"
	"github.com/lotas/tabheinzel/internal/server"
	"github.com/lotas/tabheinzel/internal/storage"
	"github.com/lotas/tabheinzel/internal/tui"
	flag "github.com/spf13/pflag"
)

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "":
		runPopup(args)
	case "serve":
		runServe(args)
	case "plan":
		runPlan(args)
	case "domains":
		runDomains(args)
	case "history":
		runHistory(args)
	case "profiles":
		runProfiles()
	case "help":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q. Run 'tabheinzel help' for usage.\n", cmd)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Print(`tabheinzel — keeps browser tabs grouped by domain

Usage:
  tabheinzel                                 Run the daemon with the terminal popup
  tabheinzel serve                           Run the daemon headless
  tabheinzel plan [--json] [--color]         Dry run against the Firefox session file
    --out <file>           Write the plan to a file instead of stdout
  tabheinzel domains list                    List Important domains
  tabheinzel domains add <host|url>          Mark a domain Important
  tabheinzel domains remove <host>           Unmark a domain
  tabheinzel domains export [--out <file>]   Export Important domains, one per line
  tabheinzel domains import <file>           Merge domains from a file
  tabheinzel history [--limit <n>]           Show recent reorganization passes
  tabheinzel profiles                        List Firefox profiles

Global flags:
  -c, --config <file>      Config file (default: ~/.config/tabheinzel/config.json)
  -p, --port <n>           WebSocket port for the extension (default: 19192)
      --db <path>          SQLite database (default: ~/.local/share/tabheinzel/tabheinzel.db)
      --log-dir <path>     Log directory (default: ~/.local/share/tabheinzel)
      --profile <name>     Firefox profile for plan

Environment:
  TABHEINZEL_PORT, TABHEINZEL_DB, TABHEINZEL_LOG_DIR, TABHEINZEL_PROFILE
`)
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

// loadConfig parses args into a flag set carrying the global flags plus
// whatever extra registers, then resolves the configuration.
func loadConfig(name string, args []string, extra func(fs *flag.FlagSet)) (config.Config, *flag.FlagSet) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	config.RegisterFlags(fs)
	if extra != nil {
		extra(fs)
	}
	fs.Parse(args)

	cfg, err := config.Load(config.LoadInput{Env: config.Environ(os.Environ()), Flags: fs})
	if err != nil {
		fatal("%v", err)
	}
	return cfg, fs
}

func openStore(cfg config.Config) (*sql.DB, *important.Store) {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fatal("opening database: %v", err)
	}
	return db, important.NewStore(storage.NewKV(db))
}

// app is the running daemon: bridge, organizer and dispatcher.
type app struct {
	srv    *server.Server
	daemon *daemon.Daemon
}

func newApp(cfg config.Config, db *sql.DB, store *important.Store) *app {
	srv := server.New(cfg.Port)
	browser := server.NewBrowser(srv, cfg.CallTimeout())
	roots := domain.NewClassifier(cfg.PublicSuffix, cfg.ExtraTwoPartTLDs)

	org := organize.NewOrganizer(browser, store, roots)
	org.Exec.SettlePause = cfg.Settle()
	org.Recorder = storage.NewHistory(db)

	d := daemon.New(browser, store, org, srv.Send, daemon.Options{
		Debounce:    cfg.Debounce(),
		UnmarkDelay: cfg.UnmarkDelay(),
	})
	srv.OnConnChange(func(connected bool) {
		if !connected {
			return
		}
		// A fresh extension needs its badge.
		go func() {
			if err := d.UpdateBadge(context.Background()); err != nil {
				applog.Error("badge.connect", err)
			}
		}()
	})
	return &app{srv: srv, daemon: d}
}

// start runs the bridge and the dispatcher until ctx is done or the bridge
// stops. The returned channel yields the bridge error once both are down.
func (a *app) start(ctx context.Context) <-chan error {
	ctx, cancel := context.WithCancel(ctx)
	srvErr := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		err := a.srv.ListenAndServe(ctx)
		cancel()
		srvErr <- err
	}()
	go func() {
		a.daemon.Run(ctx, a.srv.Messages())
		cancel()
		done <- <-srvErr
		close(done)
	}()
	return done
}

func initLog(cfg config.Config) {
	if err := applog.Init(cfg.LogDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

func runServe(args []string) {
	cfg, _ := loadConfig("serve", args, nil)
	initLog(cfg)
	defer applog.Close()

	db, store := openStore(cfg)
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Listening for the extension on 127.0.0.1:%d\n", cfg.Port)
	applog.Info("daemon.start", "port", cfg.Port, "db", cfg.DBPath)
	if err := <-newApp(cfg, db, store).start(ctx); err != nil {
		applog.Error("daemon.exit", err)
		fatal("%v", err)
	}
}

func runPopup(args []string) {
	cfg, _ := loadConfig("tabheinzel", args, nil)
	initLog(cfg)
	defer applog.Close()

	db, store := openStore(cfg)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	a := newApp(cfg, db, store)
	done := a.start(ctx)

	p := tea.NewProgram(tui.NewModel(a.daemon, a.srv.Connected, cfg.Port), tea.WithAltScreen())
	_, runErr := p.Run()
	cancel()
	if err := <-done; err != nil {
		fatal("%v", err)
	}
	if runErr != nil {
		fatal("%v", runErr)
	}
}

func runPlan(args []string) {
	var jsonOut, color bool
	var outFile string
	cfg, _ := loadConfig("plan", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&jsonOut, "json", false, "Print the plan as JSON")
		fs.BoolVar(&color, "color", false, "Render groups in their colors")
		fs.StringVarP(&outFile, "out", "o", "", "Output file path (default: stdout)")
	})

	sd, err := firefox.LoadSession(cfg.Profile)
	if err != nil {
		fatal("%v", err)
	}

	// The plan still works without the database, just with no Important tabs.
	set := important.Set{}
	if db, err := storage.OpenDB(cfg.DBPath); err == nil {
		if s, err := important.NewStore(storage.NewKV(db)).Set(context.Background()); err == nil {
			set = s
		}
		db.Close()
	}

	roots := domain.NewClassifier(cfg.PublicSuffix, cfg.ExtraTwoPartTLDs)
	report := export.NewPlanReport(sd, set, roots, time.Now())

	var output string
	switch {
	case jsonOut:
		output, err = export.JSON(report)
		if err != nil {
			fatal("generating JSON: %v", err)
		}
	case color:
		output = export.Styled(report)
	default:
		output = export.Markdown(report)
	}

	writeOutput(outFile, output)
}

func writeOutput(path, content string) {
	if path == "" {
		fmt.Print(content)
		return
	}
	if err := export.WriteFile(path, content); err != nil {
		fatal("%v", err)
	}
}

func runDomains(args []string) {
	var outFile string
	cfg, fs := loadConfig("domains", args, func(fs *flag.FlagSet) {
		fs.StringVarP(&outFile, "out", "o", "", "Output file path for export")
	})
	rest := fs.Args()
	if len(rest) == 0 {
		rest = []string{"list"}
	}

	db, store := openStore(cfg)
	defer db.Close()
	ctx := context.Background()

	switch rest[0] {
	case "list", "export":
		hosts, err := store.List(ctx)
		if err != nil {
			fatal("%v", err)
		}
		if rest[0] == "list" && len(hosts) == 0 {
			fmt.Println("No Important domains.")
			return
		}
		writeOutput(outFile, export.Domains(hosts))
	case "add":
		if len(rest) < 2 {
			fatal("usage: tabheinzel domains add <host|url>")
		}
		for _, arg := range rest[1:] {
			host := arg
			if h, ok := domain.Hostname(arg); ok && strings.Contains(arg, "://") {
				host = h
			}
			added, err := store.Add(ctx, host)
			if err != nil {
				fatal("%v", err)
			}
			if added {
				fmt.Printf("Added %s\n", important.Normalize(host))
			} else {
				fmt.Printf("%s is already Important\n", important.Normalize(host))
			}
		}
	case "remove":
		if len(rest) < 2 {
			fatal("usage: tabheinzel domains remove <host>")
		}
		for _, host := range rest[1:] {
			removed, err := store.Remove(ctx, host)
			if err != nil {
				fatal("%v", err)
			}
			if removed {
				fmt.Printf("Removed %s\n", host)
			} else {
				fmt.Printf("%s was not marked\n", host)
			}
		}
	case "import":
		if len(rest) < 2 {
			fatal("usage: tabheinzel domains import <file>")
		}
		data, err := os.ReadFile(rest[1])
		if err != nil {
			fatal("%v", err)
		}
		_, added, err := store.ImportMerge(ctx, export.ParseDomains(string(data)))
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("Imported %d new domains\n", added)
	default:
		fatal("unknown domains command %q, use list, add, remove, export or import", rest[0])
	}
}

func runHistory(args []string) {
	var limit int
	cfg, _ := loadConfig("history", args, func(fs *flag.FlagSet) {
		fs.IntVarP(&limit, "limit", "n", 20, "Number of passes to show (0 for all)")
	})

	db, _ := openStore(cfg)
	defer db.Close()

	passes, err := storage.ListPasses(context.Background(), db, limit)
	if err != nil {
		fatal("%v", err)
	}
	if len(passes) == 0 {
		fmt.Println("No passes recorded yet.")
		return
	}

	fmt.Printf("%-19s  %-8s  %6s  %5s  %6s  %6s  %8s  %s\n",
		"STARTED", "SOURCE", "WINDOW", "TABS", "GROUPS", "CLOSED", "DURATION", "FAILURES")
	for _, p := range passes {
		fmt.Printf("%-19s  %-8s  %6d  %5d  %6d  %6d  %8s  %d\n",
			p.StartedAt.Local().Format("2006-01-02 15:04:05"), p.Trigger, p.WindowID,
			p.Tabs, p.Groups, p.Closed, p.Duration.Round(time.Millisecond), p.Failures)
	}
}

func runProfiles() {
	profiles, err := firefox.Discover()
	if err != nil {
		fatal("discovering Firefox profiles: %v", err)
	}
	if len(profiles) == 0 {
		fatal("no Firefox profiles found")
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}
