// ABOUTME: Interactive terminal client for the shop chat agent backend.
// ABOUTME: Streams assistant replies live and resumes conversations after OAuth hand-offs.

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/GPT-Product-Group/shop-chat-agent/internal/api"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/auth"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/authflow"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/config"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/conversation"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/protocol"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	server := flag.String("server", "", "Chat backend base URL (overrides config)")
	shop := flag.String("shop", "", "Shop identifier sent on every request (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	userEmail := flag.String("user", "", "Email of the authenticated shopper, if any")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *server, *shop, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, *userEmail); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nGoodbye!")
}

// loadConfig reads the config file if given and applies flag overrides.
func loadConfig(path, server, shop, dbPath string) (*config.Config, error) {
	var cfg *config.Config
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if server != "" {
		cfg.Server.BaseURL = server
	}
	if shop != "" {
		cfg.Server.ShopID = shop
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures the default slog logger from config.
func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cfg *config.Config, userEmail string) error {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	userID, tokens := resolveUser(ctx, st, userEmail)

	var client *api.Client
	if tokens != nil {
		client = api.NewClientWithTokens(cfg.Server.BaseURL, cfg.Server.ShopID, tokens)
	} else {
		client = api.NewClient(cfg.Server.BaseURL, cfg.Server.ShopID)
	}

	opts := conversation.Options{
		PromptType:   cfg.Prompt.Type,
		SystemPrompt: resolveSystemPrompt(ctx, st, cfg.Prompt),
		UserID:       userID,
	}

	ui := newTerminalUI()
	session := conversation.NewSession(client, st, ui, slog.Default(), opts)

	poller := authflow.New(client, session, session, slog.Default())
	poller.MaxAttempts = cfg.Auth.PollMaxAttempts
	poller.Interval = cfg.Auth.PollInterval
	poller.InitialDelay = cfg.Auth.PollInitialDelay
	session.SetResumePoller(poller)

	fmt.Printf("shop-chat connected to %s (shop %s)\n", cfg.Server.BaseURL, cfg.Server.ShopID)
	fmt.Println("Type a message and press Enter. /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := session.Attach(ctx); err != nil {
		slog.Warn("attach failed", "error", err)
	}

	return inputLoop(ctx, st, session, ui)
}

// resolveUser records the shopper and builds a token source from any stored,
// unexpired bearer token.
func resolveUser(ctx context.Context, st store.Store, email string) (string, api.TokenSource) {
	if email == "" {
		return "", nil
	}

	user, err := st.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		user = &store.User{ID: newUserID(email), Email: email}
		if err := st.UpsertUser(ctx, user); err != nil {
			slog.Warn("failed to record user", "error", err)
			return "", nil
		}
	} else if err != nil {
		slog.Warn("failed to look up user", "error", err)
		return "", nil
	} else if err := st.UpsertUser(ctx, user); err != nil {
		slog.Warn("failed to refresh user", "error", err)
	}

	return user.ID, &storeTokenSource{store: st, userID: user.ID}
}

// newUserID derives a stable id from the email local part plus a random
// suffix; the backend treats it as opaque.
func newUserID(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return fmt.Sprintf("%s-%s", local, uuid.New().String()[:8])
}

// resolveSystemPrompt prefers the explicit override, then the latest stored
// version of the configured prompt. Empty means the server's default.
func resolveSystemPrompt(ctx context.Context, st store.Store, cfg config.PromptConfig) string {
	if cfg.Override != "" {
		return cfg.Override
	}
	prompt, err := st.GetPromptByName(ctx, cfg.Type)
	if err != nil {
		return ""
	}
	version, err := st.LatestPromptVersion(ctx, prompt.ID)
	if err != nil {
		return ""
	}
	return version.Content
}

// storeTokenSource reads the shopper's bearer token from the store,
// skipping tokens that are already expired.
type storeTokenSource struct {
	store  store.Store
	userID string
}

func (s *storeTokenSource) AccessToken(ctx context.Context) (string, bool) {
	token, err := s.store.GetToken(ctx, s.userID)
	if err != nil {
		return "", false
	}
	if auth.Expired(token.AccessToken) {
		slog.Debug("stored token expired, sending unauthenticated", "user_id", s.userID)
		return "", false
	}
	return token.AccessToken, true
}

func inputLoop(ctx context.Context, st store.Store, session *conversation.Session, ui *terminalUI) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		ui.waitIdle()
		fmt.Print("> ")

		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		switch {
		case input == "/quit" || input == "/exit" || input == "/q":
			return nil
		case input == "/help":
			printHelp()
			continue
		case input == "/history":
			if err := session.Attach(ctx); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			continue
		case input == "/prompts":
			if err := listPrompts(ctx, st); err != nil {
				fmt.Printf("[error] %v\n", err)
			}
			continue
		case strings.HasPrefix(input, "/"):
			fmt.Printf("Unknown command %s. Try /help.\n", input)
			continue
		}

		if err := session.Send(ctx, input); err != nil {
			if errors.Is(err, conversation.ErrBusy) {
				fmt.Println("Still answering the previous message, one moment...")
				continue
			}
			fmt.Printf("[error] %v\n", err)
		}
	}
}

// printHelp displays available commands.
func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /history       Replay stored conversation history")
	fmt.Println("  /prompts       List stored prompts and their latest versions")
	fmt.Println("  /help          Show this help")
	fmt.Println("  /quit          Exit")
}

// listPrompts shows the stored prompt catalog.
func listPrompts(ctx context.Context, st store.Store) error {
	prompts, err := st.ListPrompts(ctx)
	if err != nil {
		return fmt.Errorf("listing prompts: %w", err)
	}
	if len(prompts) == 0 {
		fmt.Println("No stored prompts")
		return nil
	}
	for _, p := range prompts {
		version, err := st.LatestPromptVersion(ctx, p.ID)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("  %s (no versions)\n", p.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("reading prompt versions: %w", err)
		}
		fmt.Printf("  %s (v%d): %s\n", p.Name, version.Version, truncate(version.Content, 60))
	}
	return nil
}

// terminalUI implements conversation.UI by painting to stdout. Raw chunk
// text is printed as deltas while streaming; completion just closes the
// line (the rendered HTML is for richer frontends).
type terminalUI struct {
	mu      sync.Mutex
	printed map[string]int // frameID -> bytes already printed
	busy    sync.WaitGroup

	toolColor    *color.Color
	productColor *color.Color
	dimColor     *color.Color
	userColor    *color.Color
}

func newTerminalUI() *terminalUI {
	return &terminalUI{
		printed:      make(map[string]int),
		toolColor:    color.New(color.FgYellow),
		productColor: color.New(color.FgGreen),
		dimColor:     color.New(color.Faint),
		userColor:    color.New(color.FgBlue),
	}
}

// waitIdle blocks until the current turn's frames are done painting.
func (t *terminalUI) waitIdle() {
	t.busy.Wait()
}

func (t *terminalUI) MessageStarted(frameID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printed[frameID] = 0
	t.busy.Add(1)
}

func (t *terminalUI) MessageUpdated(frameID, rawText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	done := t.printed[frameID]
	if done < len(rawText) {
		fmt.Print(rawText[done:])
		t.printed[frameID] = len(rawText)
	}
}

func (t *terminalUI) MessageCompleted(frameID, rendered string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	done, open := t.printed[frameID]
	if !open {
		return
	}
	// Frames that never streamed text carry their content here, such as
	// the fixed failure strings.
	if done == 0 && rendered != "" {
		fmt.Print(rendered)
	}
	fmt.Println()
	delete(t.printed, frameID)
	t.busy.Done()
}

func (t *terminalUI) MessagePending(frameID string) {
	t.dimColor.Println("...")
}

func (t *terminalUI) ToolUse(call protocol.ToolCall) {
	if call.Opaque {
		t.toolColor.Printf("[tool] %s\n", truncate(call.Raw, 80))
		return
	}
	t.toolColor.Printf("[tool] %s %s\n", call.Name, truncate(call.Raw, 60))
}

func (t *terminalUI) Products(products []protocol.Product) {
	t.productColor.Printf("[products] %d result(s)\n", len(products))
	for _, p := range products {
		t.productColor.Printf("  - %s %s\n", p.Title, p.Price)
	}
}

func (t *terminalUI) HistoryMessage(role, text string) {
	if role == store.RoleUser {
		t.userColor.Printf("you: %s\n", text)
		return
	}
	fmt.Printf("assistant: %s\n", text)
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
