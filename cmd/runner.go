package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spotik/spotik/internal/auth"
	"github.com/spotik/spotik/internal/server"
	"github.com/spotik/spotik/internal/services"
	"github.com/spotik/spotik/internal/shared"
	"github.com/spotik/spotik/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// components bundles everything a serving command needs.
type components struct {
	config *shared.Config
	svc    *services.SpotifyService
	cache  *auth.Cache
	engine *tasks.PlaylistEngine
}

// loadConfig resolves the config path flag, falling back to defaults when
// the file does not exist.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	path := cmd.String("config")
	if _, err := os.Stat(path); err != nil {
		r.logger.Warn("config file not found, using defaults", "path", path)
		return shared.DefaultConfig()
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "err", err)
		return shared.DefaultConfig()
	}
	return config
}

// build wires the service, credential store, cache and engine from config.
func (r *Runner) build(config *shared.Config) (*components, error) {
	svc, err := services.NewSpotifyService(services.SpotifyOpts{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RateLimit:    config.Credentials.Spotify.RateLimit,
		Logger:       r.logger,
	})
	if err != nil {
		return nil, err
	}

	var store auth.Store
	switch config.Store.Backend {
	case "", "file":
		store, err = auth.NewFileStore(config.Store.Path)
	case "sqlite":
		db, dbErr := shared.NewDatabase(config.Store.Path)
		if dbErr != nil {
			return nil, dbErr
		}
		store, err = auth.NewSQLiteStore(db)
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", shared.ErrInvalidConfig, config.Store.Backend)
	}
	if err != nil {
		return nil, err
	}

	cache, err := auth.NewCache(auth.CacheOpts{
		Store:  store,
		Remote: svc,
		Skew:   config.Cache.Skew(),
		Logger: r.logger,
	})
	if err != nil {
		return nil, err
	}

	return &components{
		config: config,
		svc:    svc,
		cache:  cache,
		engine: tasks.NewPlaylistEngine(svc, r.logger),
	}, nil
}

// Serve runs the HTTP service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	comps, err := r.build(r.loadConfig(cmd))
	if err != nil {
		return err
	}

	oauthConfig := server.NewOAuthConfig(comps.config.Credentials.Spotify)

	router := server.NewBasicRouter()
	router.Use(server.RequestID(), server.Logging(r.logger))
	router.Handler(server.NewOAuthHandler(oauthConfig, comps.svc, comps.cache, r.logger))
	router.Handler(server.NewAPIHandler(comps.cache, comps.engine, comps.svc, r.logger))

	addr := fmt.Sprintf("%s:%d", comps.config.Server.Host, comps.config.Server.Port)
	r.logger.Info("starting service", "addr", addr, "store", comps.config.Store.Backend, "users", comps.cache.Len())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx, addr, router, r.logger)
}

// Setup writes the default configuration file.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	return r.writePlainln("Wrote default configuration to %s", path)
}

// AuthURL prints the authorization URL for headless setups, optionally
// opening the system browser.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if config.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id not configured", shared.ErrMissingCredentials)
	}

	authURL := server.NewOAuthConfig(config.Credentials.Spotify).AuthCodeURL(shared.GenerateID())
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(authURL); err != nil {
			r.logger.Warn("failed to open browser", "err", err)
		}
	}

	return r.writePlainln("%s", authURL)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
