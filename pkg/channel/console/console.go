// Package console is an interactive stdin/stdout channel for local
// development. It reads lines, routes them through the dispatch core like
// any other channel, and prints replies.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-chi/chi/v5"

	"botgate/pkg/channel"
	"botgate/pkg/message"
)

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	replyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// Adapter implements channel.Channel over the local terminal. The user
// id is the local OS user; pushes addressed to anyone print the same way.
type Adapter struct {
	log    *slog.Logger
	in     io.Reader
	out    io.Writer
	userID string

	name     string
	callback channel.Callback

	mu      sync.Mutex
	started bool
}

// NewAdapter constructs a console adapter reading stdin.
func NewAdapter(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}

	userID := os.Getenv("USER")
	if userID == "" {
		userID = "console"
	}

	return &Adapter{
		log:    log.With("component", "channel.console"),
		in:     os.Stdin,
		out:    os.Stdout,
		userID: userID,
	}
}

// Configure stores the inbound callback and starts the read loop. The
// console has no webhook, so the router goes unused.
func (a *Adapter) Configure(_ chi.Router, name string, callback channel.Callback) {
	a.name = name
	a.callback = callback

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	go a.readLoop()
}

// Send prints an outbound message to the terminal.
func (a *Adapter) Send(_ context.Context, msg message.Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := fmt.Fprintln(a.out, replyStyle.Render(msg.Text))
	return err
}

func (a *Adapter) readLoop() {
	scanner := bufio.NewScanner(a.in)
	prompt := promptStyle.Render("> ")

	fmt.Fprint(a.out, prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(a.out, prompt)
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		inbound := message.NewRequest(message.User{ID: a.userID, Channel: a.name}, line, nil)

		response, err := a.callback(context.Background(), inbound)
		switch {
		case err != nil:
			fmt.Fprintln(a.out, errorStyle.Render("error: "+err.Error()))
		case response != nil:
			reply := message.NewResponse(inbound.User, response.Text, response.Context)
			if sendErr := a.Send(context.Background(), reply); sendErr != nil {
				a.log.Error("Failed to print reply", "error", sendErr)
			}
		}

		fmt.Fprint(a.out, prompt)
	}
}

var _ channel.Channel = (*Adapter)(nil)
