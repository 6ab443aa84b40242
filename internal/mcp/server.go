package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/deskview/internal/domain/caselookup"
	"github.com/rpggio/deskview/internal/domain/screen"
	"github.com/rpggio/deskview/internal/identity"
)

// ScreenService defines screen operations needed by MCP.
type ScreenService interface {
	Home(role identity.Role) (screen.Home, error)
	Open(ctx context.Context, sess identity.Session, screenID string) (*screen.Instance, error)
	Refresh(ctx context.Context, sess identity.Session, screenID string) (*screen.Instance, error)
}

// CaseService defines case lookup operations needed by MCP.
type CaseService interface {
	Lookup(ctx context.Context, sess identity.Session, number string) (caselookup.Result, error)
}

// Config contains server configuration.
type Config struct {
	Screens ScreenService
	Cases   CaseService
	// Resolver authenticates bearer tokens. It is ignored when Session is set.
	Resolver identity.Resolver
	// Session, when set, is used for every request instead of bearer auth.
	Session  *identity.Session
	PageSize int
	Version  string
	Logger   *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "deskview",
		Version: cfg.Version,
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	auth := authMiddleware(cfg.Resolver)
	if cfg.Session != nil {
		auth = staticMiddleware(*cfg.Session)
	}
	// The first middleware is the outermost.
	server.AddReceivingMiddleware(auth, scopeMiddleware(), trafficLogger(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLogger(cfg.Logger, "outbound"))

	registerTools(server, cfg)

	return server
}
