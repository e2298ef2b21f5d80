// Tao answers questions about a company's offices.
//
// Weather questions go to a Thought-Action-Observation agent that calls
// the Open-Meteo services through a small tool registry; analytics
// questions are classified onto canonical operations and answered from
// the office dataset. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]); without
// one the built-in defaults are used.
//
// Usage:
//
//	tao                      Interactive session
//	tao init [dir]           Write a starter config and sample data
//	tao ask <question>       Answer a single question
//	tao demo                 Run the sample questions
//	tao classify <question>  Show how a question is classified
//	tao index [dir]          Rebuild the document search index
//	tao version              Print version and build information
//	tao -o json version      Output version information as JSON
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nugget/tao-agent/internal/buildinfo"
	"github.com/nugget/tao-agent/internal/config"
	"github.com/nugget/tao-agent/internal/router"
)

// demoQueries exercise every analytics operation and the weather agent.
var demoQueries = []string{
	"What's the average revenue across our offices?",
	"Which office has the highest revenue?",
	"Which office has the most employees?",
	"Tell me about the Chicago office",
	"What offices opened after 2014?",
	"Which office is most efficient?",
	"What's the weather like at our Paris office?",
}

// main constructs the OS-level environment and delegates to [run], which
// keeps os.Exit, the standard streams and os.Args out of the
// application logic so tests can drive it.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the tao command. Answers go to stdout
// and structured logs to stderr, so json output stays machine-readable.
//
// Arguments are parsed by hand: the flag package relies on package-level
// globals, which makes it impossible to call run concurrently from tests.
func run(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "":
		return runChat(ctx, stdin, stdout, stderr, configPath, outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: tao ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, strings.Join(cmdArgs, " "))
	case "demo":
		return runDemo(ctx, stdout, stderr, configPath, outputFmt)
	case "classify":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: tao classify <question>")
		}
		return runClassify(stdout, stderr, configPath, outputFmt, strings.Join(cmdArgs, " "))
	case "index":
		var dir string
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runIndex(ctx, stdout, stderr, configPath, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "help":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Tao - Office analytics and weather agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: tao [flags] [command] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  (none)        Interactive session (type 'demo', 'stats' or 'exit')")
	fmt.Fprintln(w, "  init [dir]    Write a starter config and sample data (default: .)")
	fmt.Fprintln(w, "  ask           Answer a single question")
	fmt.Fprintln(w, "  demo          Run the sample questions")
	fmt.Fprintln(w, "  classify      Show the canonical operation chosen for a question")
	fmt.Fprintln(w, "  index [dir]   Rebuild the document search index (default: data.docs_dir)")
	fmt.Fprintln(w, "  version       Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/tao/config.yaml, /etc/tao/config.yaml")
	return nil
}

// reply is the json form of one answered question.
type reply struct {
	Question string          `json:"question"`
	Answer   string          `json:"answer"`
	Decision router.Decision `json:"decision"`
	Error    string          `json:"error,omitempty"`
}

// answer routes one question and writes the reply. Handler errors are
// part of the reply; only output failures are returned.
func answer(ctx context.Context, w io.Writer, a *app, outputFmt, question string) error {
	text, d, err := a.router.Handle(ctx, question)
	if outputFmt == "json" {
		r := reply{Question: question, Answer: text, Decision: d}
		if err != nil {
			r.Error = err.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	_, werr := fmt.Fprintf(w, "%s\n", text)
	return werr
}

// setup loads configuration, builds the logger and wires the app.
func setup(ctx context.Context, stderr io.Writer, configPath string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := config.NewLogger(stderr, level, cfg.LogFormat)
	if cfgPath != "" {
		logger.Info("config loaded", "path", cfgPath)
	} else {
		logger.Info("no config file found, using defaults")
	}
	return newApp(ctx, cfg, logger)
}

// runAsk answers a single question.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt, question string) error {
	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return answer(ctx, stdout, a, outputFmt, question)
}

// runDemo answers each of the sample questions in turn.
func runDemo(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.checkModel(ctx)
	if err := demo(ctx, stdout, a, outputFmt); err != nil {
		return err
	}
	return printStats(stdout, a, outputFmt, len(demoQueries))
}

func demo(ctx context.Context, w io.Writer, a *app, outputFmt string) error {
	for i, q := range demoQueries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if outputFmt == "text" {
			fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(demoQueries), q)
			fmt.Fprintln(w, strings.Repeat("-", 60))
		}
		if err := answer(ctx, w, a, outputFmt, q); err != nil {
			return err
		}
	}
	return nil
}

// statsHistory is how many recent decisions the stats command lists.
const statsHistory = 10

// printStats writes the router's counters and its most recent decisions.
func printStats(w io.Writer, a *app, outputFmt string, limit int) error {
	stats := a.router.GetStats()
	recent := a.router.GetAuditLog(limit)
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Stats  router.Stats      `json:"stats"`
			Recent []router.Decision `json:"recent"`
		}{stats, recent})
	}

	fmt.Fprintf(w, "\nQuestions routed: %d\n", stats.TotalRequests)
	for _, route := range []router.Route{router.RouteWeather, router.RouteAnalytics} {
		fmt.Fprintf(w, "  %-10s %d (%d failed)\n", route+":", stats.RouteCounts[route], stats.Failures[route])
	}
	for _, d := range recent {
		status := "pending"
		if d.Success != nil {
			status = "ok"
			if !*d.Success {
				status = "failed"
			}
		}
		fmt.Fprintf(w, "  - [%s] %s %dms %q\n", d.Route, status, d.LatencyMs, d.Query)
	}
	return nil
}

// runChat reads questions from stdin until "exit" or end of input.
func runChat(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath, outputFmt string) error {
	a, err := setup(ctx, stderr, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.checkModel(ctx)
	fmt.Fprintln(stdout, "Ask about our offices or the weather there. Type 'demo' for samples, 'stats' for routing history, 'exit' to quit.")
	sc := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "> ")
		if !sc.Scan() {
			fmt.Fprintln(stdout)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "demo":
			err = demo(ctx, stdout, a, outputFmt)
		case "stats":
			err = printStats(stdout, a, outputFmt, statsHistory)
		default:
			err = answer(ctx, stdout, a, outputFmt, line)
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// runClassify prints the classifier's verdict without calling any model.
func runClassify(stdout, stderr io.Writer, configPath, outputFmt, question string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	c := newClassifier(cfg)
	res := c.Classify(question)

	if outputFmt == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Question string             `json:"question"`
			Result   any                `json:"result"`
			Scores   map[string]float64 `json:"scores"`
		}{question, res, c.Scores(question)})
	}

	if !res.Matched() {
		fmt.Fprintf(stdout, "No match: %s\n", res.Reason)
		return nil
	}
	fmt.Fprintf(stdout, "Operation:  %s\n", res.Suggested)
	fmt.Fprintf(stdout, "Confidence: %.2f\n", res.Confidence)
	fmt.Fprintf(stdout, "Reason:     %s\n", res.Reason)
	for _, alt := range res.Alternatives {
		fmt.Fprintf(stdout, "  also: %s (%.2f)\n", alt.Operation, alt.Score)
	}
	return nil
}

// runIndex rebuilds the document index from dir, or from the configured
// docs directory when dir is empty.
func runIndex(ctx context.Context, stdout, stderr io.Writer, configPath, dir string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := config.NewLogger(stderr, level, cfg.LogFormat)

	if !cfg.Embeddings.Enabled {
		return errors.New("embeddings are disabled (set embeddings.enabled in config)")
	}
	if dir == "" {
		dir = cfg.Data.DocsDir
	}
	store, err := openIndex(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.IndexDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("index %s: %w", dir, err)
	}
	fmt.Fprintf(stdout, "Indexed %d chunks from %d files in %s (%d skipped, %d removed)\n", st.Chunks, st.Files, dir, st.Skipped, st.Removed)
	return nil
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used and must exist. When no file is
// found in the default locations the built-in defaults are returned
// with an empty path.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit == "" && errors.Is(err, config.ErrNoConfig) {
			return config.Default(), "", nil
		}
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
