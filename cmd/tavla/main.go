package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hylla/tavla/internal/adapters/backup/s3backup"
	"github.com/hylla/tavla/internal/adapters/remote/httpclient"
	"github.com/hylla/tavla/internal/adapters/server"
	"github.com/hylla/tavla/internal/adapters/server/common"
	"github.com/hylla/tavla/internal/adapters/storage/sqlite"
	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/config"
	"github.com/hylla/tavla/internal/platform"
	"github.com/hylla/tavla/internal/tui"
)

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// main handles main.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fang.Execute(ctx, newRootCommand(os.Stdout, os.Stderr), fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree with plain cobra output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// cli holds global flag values shared by every command.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	now        func() time.Time
}

// runtimeState is the resolved configuration for one command run.
type runtimeState struct {
	command    string
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

// newRootCommand builds the tavla command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	c := &cli{stdout: stdout, stderr: stderr, now: time.Now}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("TAVLA_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("TAVLA_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	var boardID string
	root := &cobra.Command{
		Use:           "tavla",
		Short:         "Drag-and-drop kanban boards in the terminal",
		Long:          "tavla renders kanban boards in the terminal. Cards and columns move by mouse drag or keyboard and sync through a local sqlite store or a tavla server.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runTUI(cmd.Context(), boardID)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "path to config TOML")
	pf.StringVar(&c.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&c.appName, "app", defaultApp, "application name for config/data path resolution")
	pf.BoolVar(&c.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	root.Flags().StringVar(&boardID, "board", "", "board id to open first")

	root.AddCommand(
		c.pathsCommand(),
		c.serveCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.backupCommand(),
		c.moveCommand(),
	)
	return root
}

// pathsCommand prints resolved paths.
func (c *cli) pathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := c.resolvePaths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", c.resolveConfigPath(paths))
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(c.stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// serveCommand hosts the local store over REST, websocket, and MCP.
func (c *cli) serveCommand() *cobra.Command {
	var bind, apiEndpoint, mcpEndpoint string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local store as a tavla backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.resolve("serve")
			if err != nil {
				return err
			}
			defer rt.close(c.stderr)
			if rt.cfg.Remote.Mode != config.RemoteModeLocal {
				return fmt.Errorf("serve requires remote.mode %q, got %q", config.RemoteModeLocal, rt.cfg.Remote.Mode)
			}
			if strings.TrimSpace(bind) != "" {
				rt.cfg.Server.Bind = bind
			}
			if strings.TrimSpace(apiEndpoint) != "" {
				rt.cfg.Server.APIEndpoint = apiEndpoint
			}
			if strings.TrimSpace(mcpEndpoint) != "" {
				rt.cfg.Server.MCPEndpoint = mcpEndpoint
			}

			repo, closeRepo, err := openSQLite(rt)
			if err != nil {
				return err
			}
			defer closeRepo()
			svc := newService(repo, rt)
			defer svc.Close()

			rt.logger.Info("command flow start", "command", "serve", "bind", rt.cfg.Server.Bind)
			err = server.Run(cmd.Context(), server.Config{
				HTTPBind:      rt.cfg.Server.Bind,
				APIEndpoint:   rt.cfg.Server.APIEndpoint,
				MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
				ServerName:    c.appName,
				ServerVersion: version,
			}, server.Dependencies{
				Store:  repo,
				Boards: common.NewAppServiceAdapter(svc),
				Logger: rt.logger.Library(),
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run server: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "listen address (overrides server.bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "REST endpoint prefix (overrides server.api_endpoint)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP endpoint path (overrides server.mcp_endpoint)")
	return cmd
}

// exportCommand writes a snapshot of every board.
func (c *cli) exportCommand() *cobra.Command {
	var outPath, format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all boards as a JSON or YAML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), "export", func(ctx context.Context, svc *app.Service, _ *runtimeState) error {
				snapFormat, err := snapshotFormat(format, outPath)
				if err != nil {
					return err
				}
				snap, err := svc.ExportSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				if outPath == "-" {
					return app.EncodeSnapshot(c.stdout, snap, snapFormat)
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := app.EncodeSnapshot(f, snap, snapFormat); err != nil {
					_ = f.Close()
					return fmt.Errorf("write export file: %w", err)
				}
				return f.Close()
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	cmd.Flags().StringVar(&format, "format", "", "snapshot format: json or yaml (default from file extension)")
	return cmd
}

// importCommand upserts a snapshot file.
func (c *cli) importCommand() *cobra.Command {
	var inPath, format string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON or YAML snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return c.withService(cmd.Context(), "import", func(ctx context.Context, svc *app.Service, _ *runtimeState) error {
				snapFormat, err := snapshotFormat(format, inPath)
				if err != nil {
					return err
				}
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				defer func() { _ = f.Close() }()
				snap, err := app.DecodeSnapshot(f, snapFormat)
				if err != nil {
					return err
				}
				if err := svc.ImportSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				_, _ = fmt.Fprintf(c.stdout, "imported %d boards, %d columns, %d cards\n", len(snap.Boards), len(snap.Columns), len(snap.Cards))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot file")
	cmd.Flags().StringVar(&format, "format", "", "snapshot format: json or yaml (default from file extension)")
	return cmd
}

// backupCommand groups the S3 backup commands.
func (c *cli) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Push, pull, or list snapshot backups in S3",
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Upload a snapshot of every board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), "backup push", func(ctx context.Context, svc *app.Service, rt *runtimeState) error {
				store, err := newBackupStore(ctx, rt)
				if err != nil {
					return err
				}
				snap, err := svc.ExportSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				key, err := store.Push(ctx, snap)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(c.stdout, "pushed %s\n", key)
				return nil
			})
		},
	}

	var key string
	pull := &cobra.Command{
		Use:   "pull",
		Short: "Download a snapshot and import it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withService(cmd.Context(), "backup pull", func(ctx context.Context, svc *app.Service, rt *runtimeState) error {
				store, err := newBackupStore(ctx, rt)
				if err != nil {
					return err
				}
				snap, pulled, err := store.Pull(ctx, key)
				if err != nil {
					return err
				}
				if err := svc.ImportSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				_, _ = fmt.Fprintf(c.stdout, "restored %s\n", pulled)
				return nil
			})
		},
	}
	pull.Flags().StringVar(&key, "key", "", "object key to restore (default latest)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshot keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := c.resolve("backup list")
			if err != nil {
				return err
			}
			defer rt.close(c.stderr)
			store, err := newBackupStore(cmd.Context(), rt)
			if err != nil {
				return err
			}
			keys, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, k := range keys {
				_, _ = fmt.Fprintln(c.stdout, k)
			}
			return nil
		},
	}

	cmd.AddCommand(push, pull, list)
	return cmd
}

// moveCommand moves a card or a column through the same path as a drop.
func (c *cli) moveCommand() *cobra.Command {
	var cardID, columnID string
	var index int
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a card to a column index, or a column to a board index",
		Example: "  tavla move --card 7f3c --column 91aa --index 0\n" +
			"  tavla move --column 91aa --index 2",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(columnID) == "" {
				return errors.New("--column is required")
			}
			if index < 0 {
				return fmt.Errorf("--index must be >= 0, got %d", index)
			}
			return c.withService(cmd.Context(), "move", func(ctx context.Context, svc *app.Service, _ *runtimeState) error {
				if strings.TrimSpace(cardID) != "" {
					res, err := svc.MoveCard(ctx, cardID, columnID, index)
					if err != nil {
						return fmt.Errorf("move card: %w", err)
					}
					_, _ = fmt.Fprintf(c.stdout, "card %s -> column %s index %d (revision %d)\n", res.ItemID, res.To.ContainerID, res.To.Index, res.Revision)
					return nil
				}
				res, err := svc.MoveColumn(ctx, columnID, index)
				if err != nil {
					return fmt.Errorf("move column: %w", err)
				}
				_, _ = fmt.Fprintf(c.stdout, "column %s -> index %d (revision %d)\n", res.ItemID, res.To.Index, res.Revision)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&cardID, "card", "", "card id to move")
	cmd.Flags().StringVar(&columnID, "column", "", "target column id, or the column to move when --card is empty")
	cmd.Flags().IntVar(&index, "index", 0, "target index")
	return cmd
}

// runTUI runs the board view.
func (c *cli) runTUI(ctx context.Context, boardID string) error {
	rt, err := c.resolve("tui")
	if err != nil {
		return err
	}
	// Keep TUI rendering clean: runtime logs stay in the dev-file sink while the board is active.
	rt.logger.SetConsoleEnabled(false)
	defer rt.close(c.stderr)

	svc, closeBackend, err := openService(ctx, rt)
	if err != nil {
		return err
	}
	defer closeBackend()

	m := tui.NewModel(
		svc,
		tui.WithInitialBoard(boardID),
		tui.WithKeyConfig(tui.KeyConfig{
			GrabCard:   rt.cfg.Keys.GrabCard,
			GrabColumn: rt.cfg.Keys.GrabColumn,
			Yank:       rt.cfg.Keys.Yank,
			Boards:     rt.cfg.Keys.Boards,
		}),
	)
	rt.logger.Info("starting tui program loop", "remote_mode", rt.cfg.Remote.Mode)
	final, err := programFactory(m).Run()
	if done, ok := final.(tui.Model); ok {
		done.Close()
	}
	if err != nil {
		rt.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	rt.logger.Info("command flow complete", "command", "tui")
	return nil
}

// withService resolves runtime state, opens the configured backend, and runs fn.
func (c *cli) withService(ctx context.Context, command string, fn func(context.Context, *app.Service, *runtimeState) error) error {
	rt, err := c.resolve(command)
	if err != nil {
		return err
	}
	defer rt.close(c.stderr)

	svc, closeBackend, err := openService(ctx, rt)
	if err != nil {
		return err
	}
	defer closeBackend()

	rt.logger.Info("command flow start", "command", command)
	if err := fn(ctx, svc, rt); err != nil {
		rt.logger.Error("command flow failed", "command", command, "err", err)
		return err
	}
	rt.logger.Info("command flow complete", "command", command)
	return nil
}

// resolvePaths resolves platform paths for the selected app name.
func (c *cli) resolvePaths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.appName,
		DevMode: c.devMode,
	})
}

// resolveConfigPath applies --config, then TAVLA_CONFIG, then the platform path.
func (c *cli) resolveConfigPath(paths platform.Paths) string {
	if strings.TrimSpace(c.configPath) != "" {
		return c.configPath
	}
	if envPath := strings.TrimSpace(os.Getenv("TAVLA_CONFIG")); envPath != "" {
		return envPath
	}
	return paths.ConfigPath
}

// resolve loads configuration and builds the runtime logger.
func (c *cli) resolve(command string) (*runtimeState, error) {
	paths, err := c.resolvePaths()
	if err != nil {
		return nil, err
	}
	configPath := c.resolveConfigPath(paths)

	dbPath := strings.TrimSpace(c.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("TAVLA_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(c.stderr, c.appName, c.devMode, cfg.Logging, c.now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", c.appName, "dev_mode", c.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &runtimeState{command: command, paths: paths, configPath: configPath, cfg: cfg, logger: logger}, nil
}

// close closes the runtime log sinks.
func (rt *runtimeState) close(stderr io.Writer) {
	if err := rt.logger.Close(); err != nil && rt.logger.shouldLogToSink(rt.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openService opens the configured backend and wraps it in an application service.
func openService(ctx context.Context, rt *runtimeState) (*app.Service, func(), error) {
	var (
		backend app.Backend
		closeFn = func() {}
	)
	switch rt.cfg.Remote.Mode {
	case config.RemoteModeHTTP:
		rt.logger.Info("connecting to remote backend", "base_url", rt.cfg.Remote.BaseURL)
		client, err := httpclient.New(
			rt.cfg.Remote.BaseURL,
			httpclient.WithReconnect(rt.cfg.Remote.ReconnectMin.Std(), rt.cfg.Remote.ReconnectMax.Std()),
			httpclient.WithLogger(rt.logger.Library()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("configure remote backend: %w", err)
		}
		if _, err := client.ListBoards(ctx); err != nil {
			rt.logger.Error("remote backend unreachable", "base_url", rt.cfg.Remote.BaseURL, "err", err)
			return nil, nil, fmt.Errorf("reach remote backend: %w", err)
		}
		backend = client
	default:
		repo, closeRepo, err := openSQLite(rt)
		if err != nil {
			return nil, nil, err
		}
		backend, closeFn = repo, closeRepo
	}
	svc := newService(backend, rt)
	return svc, func() {
		svc.Close()
		closeFn()
	}, nil
}

// openSQLite opens the local store.
func openSQLite(rt *runtimeState) (*sqlite.Repository, func(), error) {
	rt.logger.Info("opening sqlite repository", "db_path", rt.cfg.Database.Path)
	repo, err := sqlite.Open(rt.cfg.Database.Path)
	if err != nil {
		rt.logger.Error("sqlite open failed", "db_path", rt.cfg.Database.Path, "err", err)
		return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	rt.logger.Info("sqlite repository ready", "db_path", rt.cfg.Database.Path, "migrations", "ensured")
	return repo, func() {
		if closeErr := repo.Close(); closeErr != nil {
			rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", closeErr)
		}
	}, nil
}

// newService builds the application service from config.
func newService(backend app.Backend, rt *runtimeState) *app.Service {
	svc := app.NewService(backend, uuid.NewString, nil, app.ServiceConfig{
		Allocator:      rt.cfg.Allocator(),
		DefaultColumns: rt.cfg.Board.DefaultColumns,
		Logger:         rt.logger.Library(),
	})
	rt.logger.Debug("application service initialized", "initial_key", rt.cfg.Ordering.InitialKey, "step", rt.cfg.Ordering.Step)
	return svc
}

// newBackupStore builds the S3 snapshot store from the backup section.
func newBackupStore(ctx context.Context, rt *runtimeState) (*s3backup.Store, error) {
	if !rt.cfg.BackupConfigured() {
		return nil, errors.New("backup.bucket is not configured")
	}
	bcfg := s3backup.Config{
		Endpoint:     rt.cfg.Backup.Endpoint,
		Bucket:       rt.cfg.Backup.Bucket,
		Region:       rt.cfg.Backup.Region,
		AccessKey:    rt.cfg.Backup.AccessKey,
		SecretKey:    rt.cfg.Backup.SecretKey,
		UsePathStyle: rt.cfg.Backup.UsePathStyle,
		Prefix:       rt.cfg.Backup.Prefix,
	}
	client, err := s3backup.NewClient(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("configure s3 client: %w", err)
	}
	return s3backup.New(client, bcfg, s3backup.WithLogger(rt.logger.Library()))
}

// snapshotFormat picks an explicit format or infers one from a file extension.
func snapshotFormat(raw, path string) (app.SnapshotFormat, error) {
	if strings.TrimSpace(raw) != "" {
		return app.ParseSnapshotFormat(raw)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return app.SnapshotFormatYAML, nil
	default:
		return app.SnapshotFormatJSON, nil
	}
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
