package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/duochat/duochat/internal/api"
	"github.com/duochat/duochat/internal/chat"
	"github.com/duochat/duochat/internal/config"
	"github.com/duochat/duochat/internal/history"
	"github.com/duochat/duochat/internal/logger"
	"github.com/duochat/duochat/internal/store"
	"github.com/duochat/duochat/internal/transport"
)

// New creates a new TUI model
func New(cfg *config.Config, client *api.Client, archive *history.Manager) *Model {
	cache := store.NewMessageCache(client.ListMessages)
	coord := chat.NewCoordinator(store.NewConversationStore(), cache)

	mgr := transport.NewManager(transport.Config{
		ReconnectDelay:       time.Duration(cfg.Realtime.ReconnectDelaySeconds) * time.Second,
		MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
		PollInterval:         time.Duration(cfg.Realtime.PollSeconds) * time.Second,
	})

	return &Model{
		cfg:          cfg,
		client:       client,
		coord:        coord,
		transport:    mgr,
		archive:      archive,
		mode:         ModeNormal,
		viewMode:     ViewList,
		focusedPanel: "list",
		chatView:     viewport.New(80, 20),
	}
}

// Run starts the TUI
func Run(cfg *config.Config) error {
	session, err := config.LoadSession()
	if err != nil {
		return err
	}

	client, err := api.New(cfg.ServerURL, session.Cookies)
	if err != nil {
		return err
	}

	var archive *history.Manager
	if cfg.Archive {
		archive, err = history.NewManager(config.DatabasePath)
		if err != nil {
			// The client still works without the local archive.
			logger.Warn("archive disabled: %v", err)
			archive = nil
		}
	}

	m := New(cfg, client, archive)
	defer m.Cleanup()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return err
	}

	return nil
}
