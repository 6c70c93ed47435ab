package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/christopherklint97/dayscore/internal/ai"
	"github.com/christopherklint97/dayscore/internal/calendar"
	"github.com/christopherklint97/dayscore/internal/collector"
	"github.com/christopherklint97/dayscore/internal/config"
	"github.com/christopherklint97/dayscore/internal/github"
	"github.com/christopherklint97/dayscore/internal/metrics"
	"github.com/christopherklint97/dayscore/internal/msgraph"
	"github.com/christopherklint97/dayscore/internal/observability"
	"github.com/christopherklint97/dayscore/internal/report"
	"github.com/christopherklint97/dayscore/internal/scheduler"
	"github.com/christopherklint97/dayscore/internal/scoring"
	"github.com/christopherklint97/dayscore/internal/server"
	"github.com/christopherklint97/dayscore/internal/store"
	"github.com/christopherklint97/dayscore/internal/tui"
)

var (
	verbose    bool
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "dayscore",
	Short: "Daily productivity scores from your coding, calendar and health data",
	Long: "dayscore collects GitHub activity, calendar occupancy and manually logged health data, " +
		"scores each day from 0 to 100 and finds patterns across the week.",
	SilenceUsage: true,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch GitHub and calendar data into the local store",
	RunE:  runCollect,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Log exercise, sleep, steps and screen time for a day",
	Long:  "Log health data for a day. Without value flags an interactive form opens.",
	RunE:  runLog,
}

var scoreCmd = &cobra.Command{
	Use:   "score [date]",
	Short: "Score a stored day (default: yesterday)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScore,
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Analyze the last week and show the report",
	RunE:  runWeek,
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Select the GitHub repositories to track",
	RunE:  runRepos,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE:  runServe,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daily scheduler",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scheduler",
	RunE:  runStop,
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage the calendar source",
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Sign in to Microsoft Graph for Outlook calendar access",
	RunE:  runCalendarAuth,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Open config file in your editor",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.config/dayscore/config.toml)")

	collectCmd.Flags().String("date", "yesterday", "Last day to collect (YYYY-MM-DD or e.g. \"last friday\")")
	collectCmd.Flags().Int("days", 1, "Number of days to collect, ending at --date")

	logCmd.Flags().String("date", "today", "Day to log")
	logCmd.Flags().Int("exercise", 0, "Exercise minutes")
	logCmd.Flags().Float64("sleep", 0, "Hours slept the night before")
	logCmd.Flags().Int("steps", 0, "Step count")
	logCmd.Flags().Int("screen", 0, "Total screen time minutes")
	logCmd.Flags().Int("productive", 0, "Minutes in productive apps")

	scoreCmd.Flags().Bool("json", false, "Print the result as JSON")
	scoreCmd.Flags().Bool("collect", false, "Collect the day before scoring it")

	weekCmd.Flags().String("end", "yesterday", "Last day of the period")
	weekCmd.Flags().Int("days", 7, "Length of the period in days")
	weekCmd.Flags().Bool("json", false, "Print the report as JSON")
	weekCmd.Flags().Bool("plain", false, "Print the report without the interactive view")
	weekCmd.Flags().Bool("no-ai", false, "Skip the AI narrative")
	weekCmd.Flags().Bool("collect", false, "Collect the period before analyzing it")

	configCmd.Flags().Bool("path", false, "Print the config file path and exit")
	configCmd.Flags().Bool("check", false, "Validate the config file and exit")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(weekCmd)
	rootCmd.AddCommand(reposCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)

	calendarCmd.AddCommand(calendarAuthCmd)
	rootCmd.AddCommand(calendarCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config, run 'dayscore config' to fix it:\n%w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelWarn
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func openStore(cfg *config.Config) (*store.DB, error) {
	path, err := cfg.StorePath()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// newCollector wires the configured sources. GitHub is skipped when no
// repos are selected or no token can be found.
func newCollector(cfg *config.Config, db *store.DB, logger *slog.Logger) *collector.Collector {
	var coding collector.CodingSource
	if len(cfg.GitHub.Repos) > 0 {
		token, err := github.ResolveToken(cfg.GitHub.Token)
		if err != nil {
			logger.Warn("GitHub disabled", "error", err)
		} else {
			coding = github.NewClient(token, logger)
		}
	}

	var cal collector.CalendarSource
	if cfg.Calendar.Enabled {
		classifier := calendar.Classifier{
			FocusKeywords:  cfg.Calendar.FocusKeywords,
			IgnoreKeywords: cfg.Calendar.IgnoreKeywords,
		}
		switch cfg.Calendar.Provider {
		case config.CalendarMSGraph:
			if auth, err := newGraphAuth(cfg, logger); err != nil {
				logger.Warn("calendar disabled", "error", err)
			} else {
				cal = msgraph.NewClient(auth, classifier, logger)
			}
		default:
			cal = calendar.Source{Location: cfg.Calendar.Source, Classifier: classifier}
		}
	}

	return collector.New(db, coding, cfg.GitHub.Repos, cal, logger)
}

func newGraphAuth(cfg *config.Config, logger *slog.Logger) (*msgraph.Auth, error) {
	tokens, err := msgraph.DefaultTokenStore()
	if err != nil {
		return nil, err
	}
	return msgraph.NewAuth(cfg.Calendar.ClientID, cfg.Calendar.TenantID, tokens, logger), nil
}

func newNarrator(cfg *config.Config, logger *slog.Logger) (ai.Narrator, error) {
	return ai.NewNarrator(ai.Options{
		Provider: cfg.AI.Provider,
		Model:    cfg.AI.Model,
		APIKey:   cfg.AI.APIKey,
		BaseURL:  cfg.AI.BaseURL,
		Timeout:  time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
	}, logger)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runCollect(cmd *cobra.Command, args []string) error {
	dateFlag, _ := cmd.Flags().GetString("date")
	days, _ := cmd.Flags().GetInt("days")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	end, err := metrics.ResolveDate(dateFlag, time.Now())
	if err != nil {
		return err
	}
	dates, err := metrics.DateRange(end, days)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := newCollector(cfg, db, logger).Collect(ctx, dates[0], end)
	if err != nil {
		return fmt.Errorf("collecting: %w", err)
	}

	fmt.Printf("Collected %s to %s (%d days)\n", dates[0], end, len(res.Dates))
	fmt.Printf("  GitHub:   %s\n", sourceStatus(len(cfg.GitHub.Repos) > 0, res.CodingOK, fmt.Sprintf("%d days with commits", res.CodingDays)))
	fmt.Printf("  Calendar: %s\n", sourceStatus(cfg.Calendar.Enabled, res.CalendarOK, fmt.Sprintf("%d days with meetings", res.MeetingDays)))
	return nil
}

func sourceStatus(configured, ok bool, detail string) string {
	switch {
	case !configured:
		return "not configured"
	case !ok:
		return "failed (run with --verbose for details)"
	default:
		return detail
	}
}

func runLog(cmd *cobra.Command, args []string) error {
	dateFlag, _ := cmd.Flags().GetString("date")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	date, err := metrics.ResolveDate(dateFlag, time.Now())
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	current, _, err := db.GetDay(date)
	if err != nil {
		return fmt.Errorf("reading %s: %w", date, err)
	}
	h := store.Health{
		ExerciseMinutes:      current.ExerciseMinutes,
		SleepHours:           current.SleepHours,
		Steps:                current.Steps,
		ScreenTimeMinutes:    current.ScreenTimeMinutes,
		ProductiveAppMinutes: current.ProductiveAppMinutes,
	}

	flags := cmd.Flags()
	if flags.Changed("exercise") || flags.Changed("sleep") || flags.Changed("steps") ||
		flags.Changed("screen") || flags.Changed("productive") {
		if flags.Changed("exercise") {
			h.ExerciseMinutes, _ = flags.GetInt("exercise")
		}
		if flags.Changed("sleep") {
			h.SleepHours, _ = flags.GetFloat64("sleep")
		}
		if flags.Changed("steps") {
			h.Steps, _ = flags.GetInt("steps")
		}
		if flags.Changed("screen") {
			h.ScreenTimeMinutes, _ = flags.GetInt("screen")
		}
		if flags.Changed("productive") {
			h.ProductiveAppMinutes, _ = flags.GetInt("productive")
		}
	} else {
		app := tui.NewLogFormApp(date, h)
		if _, err := tea.NewProgram(app).Run(); err != nil {
			return fmt.Errorf("running TUI: %w", err)
		}
		result := app.GetResult()
		if result == nil || result.Canceled {
			fmt.Println("Nothing logged.")
			return nil
		}
		h = result.Health
	}

	if h.ExerciseMinutes < 0 || h.SleepHours < 0 || h.Steps < 0 || h.ScreenTimeMinutes < 0 || h.ProductiveAppMinutes < 0 {
		return fmt.Errorf("logged values must not be negative")
	}
	if err := db.UpsertHealth(date, h); err != nil {
		return fmt.Errorf("saving %s: %w", date, err)
	}

	m, err := collector.Day(context.Background(), db, date)
	if err != nil {
		return err
	}
	res := scoring.New(cfg.Scoring).Evaluate(m)
	fmt.Printf("Logged %s. Score so far: %d (%s)\n", date, res.Score, res.Grade)
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	collect, _ := cmd.Flags().GetBool("collect")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	dateArg := "yesterday"
	if len(args) == 1 {
		dateArg = args[0]
	}
	date, err := metrics.ResolveDate(dateArg, time.Now())
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if collect {
		if _, err := newCollector(cfg, db, logger).Collect(ctx, date, date); err != nil {
			return fmt.Errorf("collecting: %w", err)
		}
	}

	_, ok, err := db.GetDay(date)
	if err != nil {
		return err
	}
	m, err := collector.Day(ctx, db, date)
	if err != nil {
		return err
	}

	res := scoring.New(cfg.Scoring).Evaluate(m)
	if ok {
		if err := db.SaveScore(res); err != nil {
			return err
		}
		observability.RecordDailyScore(res.Score, res.Grade)
	}

	if asJSON {
		return printJSON(res)
	}
	if !ok {
		fmt.Printf("No data stored for %s. Run 'dayscore collect --date %s' or 'dayscore log --date %s'.\n\n", date, date, date)
	}
	fmt.Print(tui.RenderDay(res))
	return nil
}

func runWeek(cmd *cobra.Command, args []string) error {
	endFlag, _ := cmd.Flags().GetString("end")
	days, _ := cmd.Flags().GetInt("days")
	asJSON, _ := cmd.Flags().GetBool("json")
	plain, _ := cmd.Flags().GetBool("plain")
	noAI, _ := cmd.Flags().GetBool("no-ai")
	collect, _ := cmd.Flags().GetBool("collect")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	end, err := metrics.ResolveDate(endFlag, time.Now())
	if err != nil {
		return err
	}
	dates, err := metrics.DateRange(end, days)
	if err != nil {
		return err
	}

	var narrator ai.Narrator
	if !noAI {
		narrator, err = newNarrator(cfg, logger)
		if err != nil {
			return err
		}
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var thinking chan string
	interactive := !asJSON && !plain
	if cli, ok := narrator.(*ai.ClaudeCLI); ok && interactive {
		thinking = make(chan string, 16)
		cli.OnThinking = func(text string) {
			select {
			case thinking <- text:
			default:
			}
		}
	}

	builder := report.NewBuilder(scoring.New(cfg.Scoring), logger)
	build := func(ctx context.Context) (report.Report, error) {
		if collect {
			if _, err := newCollector(cfg, db, logger).Collect(ctx, dates[0], end); err != nil {
				return report.Report{}, fmt.Errorf("collecting: %w", err)
			}
		}
		week, err := collector.Week(ctx, db, end, days)
		if err != nil {
			return report.Report{}, err
		}
		r := builder.Build(ctx, week, narrator)
		id, err := db.SaveReport(r.StartDate, r.EndDate, r.Analysis.AvgDailyScore, r)
		if err != nil {
			logger.Warn("report not saved", "error", err)
		}
		r.ID = id
		return r, nil
	}

	if !interactive {
		r, err := build(ctx)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(r)
		}
		fmt.Print(tui.RenderReport(r))
		return nil
	}

	app := tui.NewReportApp(ctx, build, thinking)
	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	if r := app.GetReport(); r != nil {
		// Leave the report on screen after the alt screen closes.
		fmt.Print(tui.RenderReport(*r))
	}
	return nil
}

func runRepos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	token, err := github.ResolveToken(cfg.GitHub.Token)
	if err != nil {
		return err
	}
	client := github.NewClient(token, logger)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println("Fetching your GitHub repositories...")
	repos, err := client.GetRepos(ctx)
	if err != nil {
		return fmt.Errorf("fetching repos: %w", err)
	}
	if len(repos) == 0 {
		fmt.Println("No repositories found.")
		return nil
	}

	app := tui.NewRepoPickerApp(repos, cfg.GitHub.Repos)
	if _, err := tea.NewProgram(app).Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}

	result := app.GetResult()
	if result == nil || result.Canceled {
		fmt.Println("Repo selection canceled.")
		return nil
	}

	if configFile != "" {
		err = config.SaveGitHubReposTo(configFile, result.Repos)
	} else {
		err = config.SaveGitHubRepos(result.Repos)
	}
	if err != nil {
		return fmt.Errorf("saving repos: %w", err)
	}
	fmt.Printf("Tracking %d repositories.\n", len(result.Repos))
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	narrator, err := newNarrator(cfg, logger)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := server.NewServer(db, server.Options{
		Addr:     cfg.Addr(),
		Scorer:   scoring.New(cfg.Scoring),
		Narrator: narrator,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Printf("Serving on http://%s\n", cfg.Addr())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	narrator, err := newNarrator(cfg, logger)
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sched := scheduler.New(cfg, db, newCollector(cfg, db, logger), narrator, logger)
	return sched.Run(ctx)
}

func runStop(cmd *cobra.Command, args []string) error {
	pid, err := scheduler.ReadPID()
	if err != nil {
		return err
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			_ = scheduler.RemovePID()
			return fmt.Errorf("scheduler (PID %d) is not running; removed stale PID file", pid)
		}
		return fmt.Errorf("sending stop signal: %w", err)
	}

	fmt.Printf("Sent stop signal to dayscore (PID %d)\n", pid)
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	printPath, _ := cmd.Flags().GetBool("path")
	check, _ := cmd.Flags().GetBool("check")

	configPath := configFile
	if configPath == "" {
		var err error
		configPath, err = config.ConfigPath()
		if err != nil {
			return err
		}
	}

	if printPath {
		fmt.Println(configPath)
		return nil
	}
	if check {
		if _, err := loadConfig(); err != nil {
			return err
		}
		fmt.Printf("%s is valid.\n", configPath)
		return nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.WriteDefault(configPath); err != nil {
			return fmt.Errorf("writing default config: %w", err)
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	fmt.Printf("Opening %s with %s...\n", configPath, editor)

	bin, err := exec.LookPath(editor)
	if err != nil {
		// If editor fails, just print the path
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	proc := os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	}
	process, err := os.StartProcess(bin, []string{editor, configPath}, &proc)
	if err != nil {
		fmt.Printf("Could not open editor. Config file is at: %s\n", configPath)
		return nil
	}
	_, err = process.Wait()
	return err
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCalendarAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Calendar.Provider != config.CalendarMSGraph {
		return fmt.Errorf("calendar.provider is %q, set it to %q to sign in", cfg.Calendar.Provider, config.CalendarMSGraph)
	}

	auth, err := newGraphAuth(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	err = auth.Login(ctx, func(dc *msgraph.DeviceCodeResponse) {
		if dc.Message != "" {
			fmt.Println(dc.Message)
			return
		}
		fmt.Printf("Open %s and enter the code %s\n", dc.VerificationURI, dc.UserCode)
	})
	if err != nil {
		return fmt.Errorf("signing in: %w", err)
	}

	fmt.Println("Signed in. Outlook calendar data will be collected.")
	return nil
}
