package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"calassist/internal/caldav"
	"calassist/internal/classifier"
	"calassist/internal/config"
	"calassist/internal/google"
	"calassist/internal/ics"
	"calassist/internal/models"
	"calassist/internal/pipeline"
	"calassist/internal/router"
	"calassist/internal/temporal"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "calassist",
		Usage: "Turn free-text calendar requests into calendar operations.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to a YAML config file."},
			&cli.StringFlag{Name: "today", Usage: "Reference date (YYYY-MM-DD). Defaults to the local date."},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error. Overrides LOG_LEVEL."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would change without writing to the calendar."},
		},
		Commands: []*cli.Command{
			authCommand(),
			classifyCommand(),
			routeCommand(),
			intentCommand(),
			splitCommand(),
			queryCommand(),
			deleteCommand(),
			confirmCommand(),
			addCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

// env bundles what every command needs.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
	today  time.Time
}

func load(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"), os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}

	today := temporal.Midnight(time.Now())
	if s := c.String("today"); s != "" {
		if today, err = temporal.ParseReference(s); err != nil {
			return nil, err
		}
	}
	return &env{cfg: cfg, logger: setupLogger(cfg.LogLevel), today: today}, nil
}

func (e *env) assistant(c *cli.Context) (*pipeline.Assistant, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	var stores []pipeline.Store
	for _, backend := range e.cfg.Backends {
		switch backend {
		case config.BackendCalDAV:
			client, err := caldav.NewClient(c.Context, e.logger, caldav.Options{
				URL:          e.cfg.CalDAV.URL,
				Username:     e.cfg.CalDAV.Username,
				Password:     e.cfg.CalDAV.Password,
				CalendarName: e.cfg.CalDAV.Calendar,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create caldav client: %w", err)
			}
			stores = append(stores, client)
		case config.BackendGoogle:
			account := e.cfg.Google.Account
			if account == "" {
				accounts, err := google.GetTokenAccounts(e.cfg.Google.TokenDir)
				if err != nil || len(accounts) == 0 {
					return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
				}
				account = accounts[0]
			}
			client, err := google.NewClient(c.Context, e.logger, e.cfg.Google.ClientID, e.cfg.Google.ClientSecret,
				e.cfg.Google.TokenDir, account, e.cfg.Google.CalendarID, e.cfg.Timezone)
			if err != nil {
				return nil, fmt.Errorf("failed to create google client for account %s: %w", account, err)
			}
			stores = append(stores, client)
		}
	}

	if c.Bool("dry-run") {
		e.logger.Info("Performing a dry run. No changes will be made.")
	}
	return pipeline.NewAssistant(e.logger, ics.NewSplitter(e.cfg.ProdID), c.Bool("dry-run"), stores...)
}

func (e *env) classify(c *cli.Context) (models.ClassificationResult, error) {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return models.ClassificationResult{}, fmt.Errorf("a request text is required")
	}
	res := classifier.Classify(text, e.today)
	e.logger.Debug("Classified request", "action", res.Action, "start", res.StartDate, "end", res.EndDate, "rule", res.DateRule)
	return res, nil
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			e.logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(e.cfg.Google.ClientID, e.cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := google.TokenPath(e.cfg.Google.TokenDir, accountName)

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			e.logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a request into an action and a date range.",
		ArgsUsage: "<request text>",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			res, err := e.classify(c)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func routeCommand() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Decide whether a chat message can skip the model classifier.",
		ArgsUsage: "<message>",
		Action: func(c *cli.Context) error {
			return printJSON(router.PreRoute(strings.Join(c.Args().Slice(), " ")))
		},
	}
}

func intentCommand() *cli.Command {
	return &cli.Command{
		Name:      "intent",
		Usage:     "Parse a model's intent reply (argument, or stdin when absent).",
		ArgsUsage: "[reply]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "envelope", Usage: "Input is the backend's JSON response rather than the bare reply."},
		},
		Action: func(c *cli.Context) error {
			reply := strings.Join(c.Args().Slice(), " ")
			if reply == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("failed to read reply: %w", err)
				}
				reply = string(data)
			}
			if c.Bool("envelope") {
				reply = router.ReplyText([]byte(reply))
			}
			return printJSON(router.ParseIntent(reply))
		},
	}
}

func splitCommand() *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split calendar markup into standalone per-event documents.",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			markup, err := readInput(c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(ics.NewSplitter(e.cfg.ProdID).Split(markup))
		},
	}
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "List the events in the date range a request names.",
		ArgsUsage: "<request text>",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			res, err := e.classify(c)
			if err != nil {
				return err
			}
			a, err := e.assistant(c)
			if err != nil {
				return err
			}
			events, err := a.Query(c.Context, res)
			if err != nil {
				return err
			}
			return printJSON(struct {
				StartDate string               `json:"startDate"`
				EndDate   string               `json:"endDate"`
				Events    []models.ParsedEvent `json:"events"`
			}{res.StartDate, res.EndDate, events})
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Find the events a delete request refers to. Deletes only with --yes.",
		ArgsUsage: "<request text>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Delete a single match, or every match of a delete-all request, without confirmation."},
		},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			res, err := e.classify(c)
			if err != nil {
				return err
			}
			if res.Action != models.ActionDelete {
				return fmt.Errorf("request was classified as %q, not a delete", res.Action)
			}
			a, err := e.assistant(c)
			if err != nil {
				return err
			}

			found := a.FindDeletionCandidates(c.Context, res)
			if found.Error != "" || found.MatchCount == 0 {
				return printJSON(found)
			}

			if c.Bool("yes") && (found.MatchCount == 1 || res.DeleteAll) {
				if err := a.Delete(c.Context, found.Matches...); err != nil {
					return err
				}
				return printJSON(found)
			}

			state := pipeline.StateFile{Path: e.cfg.StateFile}
			if err := state.Save(pipeline.PendingDeletion{Request: res, Candidates: found.Matches, CreatedAt: time.Now()}); err != nil {
				return err
			}
			e.logger.Info("Waiting for confirmation", "candidates", found.MatchCount, "state", e.cfg.StateFile)
			return printJSON(found)
		},
	}
}

func confirmCommand() *cli.Command {
	return &cli.Command{
		Name:      "confirm",
		Usage:     "Delete the n-th candidate of the pending delete request (0 deletes all).",
		ArgsUsage: "<n>",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(strings.TrimSpace(c.Args().First()))
			if err != nil {
				return fmt.Errorf("selection must be a number: %w", err)
			}
			a, err := e.assistant(c)
			if err != nil {
				return err
			}
			deleted, err := a.Confirm(c.Context, pipeline.StateFile{Path: e.cfg.StateFile}, n)
			if errors.Is(err, pipeline.ErrNoPending) {
				return fmt.Errorf("nothing to confirm: run 'delete' first")
			}
			if err != nil {
				return err
			}
			return printJSON(deleted)
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Store every event of generated calendar markup.",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			markup, err := readInput(c.Args().First())
			if err != nil {
				return err
			}
			a, err := e.assistant(c)
			if err != nil {
				return err
			}
			records, err := a.Add(c.Context, markup)
			if perr := printJSON(records); perr != nil {
				return perr
			}
			return err
		},
	}
}

// readInput reads a file, or stdin when name is empty or "-".
func readInput(name string) (string, error) {
	var (
		data []byte
		err  error
	)
	if name == "" || name == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
