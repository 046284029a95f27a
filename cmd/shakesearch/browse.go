package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	logpkg "github.com/kailas-cloud/shakesearch/internal/logger"
	"github.com/kailas-cloud/shakesearch/internal/render"
	"github.com/kailas-cloud/shakesearch/internal/session"
	shakesearch "github.com/kailas-cloud/shakesearch/pkg/sdk"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Page through search results of a running server",
	Long: `Browse opens an interactive prompt against a running shakesearch server.

A line runs a new search. An empty line or :more loads the next page,
:quit exits. Flags can also be set as SHAKESEARCH_SERVER,
SHAKESEARCH_API_KEY and SHAKESEARCH_TIMEOUT.`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().String("server", "http://localhost:3001", "base URL of the shakesearch server")
	browseCmd.Flags().String("api-key", "", "bearer token for /search")
	browseCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")
	browseCmd.Flags().String("log-level", "", "log level: debug, info, warn, error (default warn)")

	for _, name := range []string{"server", "api-key", "timeout", "log-level"} {
		_ = viper.BindPFlag(name, browseCmd.Flags().Lookup(name))
	}

	cobra.OnInitialize(initBrowseConfig)
	rootCmd.AddCommand(browseCmd)
}

func initBrowseConfig() {
	viper.SetEnvPrefix("SHAKESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// lineAction is what a prompt line asks the session to do.
type lineAction int

const (
	actionSearch lineAction = iota
	actionMore
	actionQuit
)

// parseLine maps a prompt line to an action and, for searches, the query.
func parseLine(line string) (lineAction, string) {
	line = strings.TrimSpace(line)
	switch line {
	case "", ":more", ":m":
		return actionMore, ""
	case ":quit", ":q", ":exit":
		return actionQuit, ""
	default:
		return actionSearch, line
	}
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	logger, err := logpkg.NewLogger("cli", viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	client, err := shakesearch.New(viper.GetString("server"),
		shakesearch.WithAPIKey(viper.GetString("api-key")),
		shakesearch.WithTimeout(viper.GetDuration("timeout")),
	)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "search> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       ":quit",
	})
	if err != nil {
		return fmt.Errorf("open prompt: %w", err)
	}
	defer func() { _ = rl.Close() }()

	form := session.NewForm(nil)
	view := render.NewText(rl.Stdout(), isatty.IsTerminal(os.Stdout.Fd()))
	ctrl := session.New(client, form, view, session.WithLogger(logger))
	defer ctrl.Close()

	b := &browser{ctrl: ctrl, form: form, out: rl.Stdout(), logger: logger}

	ctx := cmd.Context()
	for {
		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			if line == "" {
				return nil
			}
			continue
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("read line: %w", err)
		}

		if b.handle(ctx, line) {
			return nil
		}
	}
}

// browser dispatches prompt lines to a session.
type browser struct {
	ctrl   *session.Controller
	form   *session.Form
	out    io.Writer
	logger *zap.Logger
}

// handle runs one prompt line and reports whether the user asked to quit.
func (b *browser) handle(ctx context.Context, line string) bool {
	action, query := parseLine(line)

	var err error
	switch action {
	case actionQuit:
		return true
	case actionMore:
		if st := b.ctrl.State(); !st.HasMore {
			b.noMore(st)
			return false
		}
		err = b.ctrl.HandleLoadMore(ctx, nil)
	case actionSearch:
		b.form.Set("q", query)
		err = b.ctrl.HandleSubmit(ctx, nil)
	}
	// Failures are already painted by the renderer.
	if err != nil {
		b.logger.Debug("dispatch failed", zap.Error(err))
	}
	return false
}

func (b *browser) noMore(st session.State) {
	if len(st.Results) == 0 {
		fmt.Fprintln(b.out, "-- nothing to load: type a query to search --")
		return
	}
	fmt.Fprintf(b.out, "-- no more results (%d shown) --\n", len(st.Results))
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(filepath.Join(dir, "shakesearch"), 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, "shakesearch", "history")
}
