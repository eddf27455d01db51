// Command agentcore is the CLI entry point over the session facade of
// SPEC_FULL §4.8: new/resume/run/stop/delete/list_sessions. Grounded on
// the reference repository's cmd/cobra_cli.go (color-styled output,
// TTY detection, cobra root command plus config/sessions subcommands),
// narrowed to this spec's operations — the TUI, MCP permission server,
// and multi-agent team commands it also wires are out of scope.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"agentcore/internal/checkpoint"
	"agentcore/internal/config"
	"agentcore/internal/extension"
	"agentcore/internal/observability"
	"agentcore/internal/orchestrator"
	"agentcore/internal/provider"
	"agentcore/internal/registry"
	"agentcore/internal/session"
	"agentcore/internal/storage"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// env wires the components a session needs: the checkpoint store, the
// capability registry and dispatcher, the provider facade, and the loop
// built over them. Built once per process invocation from --config.
type env struct {
	cfg     *config.RuntimeConfig
	store   checkpoint.Store
	extMgr  *extension.Manager
	mcp     *registry.MCPAdapter
	loop    *orchestrator.Loop
	log     observability.Logger
	metrics *observability.Metrics
}

func newEnv(ctx context.Context, configPath, baseDir string) (*env, error) {
	cfg, err := config.Load(configPath, config.DefaultEnvLookup)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logLevel := "info"
	log := observability.NewLogger(observability.LogConfig{Level: logLevel})

	backend, err := storage.NewFileBackend(baseDir)
	if err != nil {
		return nil, fmt.Errorf("open storage backend: %w", err)
	}
	store := checkpoint.NewFileStore(backend)

	extMgr, err := extension.NewManager(ctx, cfg.ExtensionsDir, log)
	if err != nil {
		return nil, fmt.Errorf("start extension host: %w", err)
	}
	if _, err := extMgr.Discover(); err != nil {
		return nil, fmt.Errorf("discover extensions: %w", err)
	}

	inst, err := extMgr.Instantiate(ctx, cfg.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("instantiate provider extension %q: %w", cfg.LLMProvider, err)
	}
	facade := provider.New(inst, nil, cfg.BaseURL, cfg.APIKey)

	reg := registry.New()
	mcpAdapter := registry.NewMCPAdapter(loadMCPServers(), log)
	if _, err := registry.RegisterAllSkipDuplicates(reg, mcpAdapter); err != nil {
		log.Warn("mcp tool discovery failed: %v", err)
	}
	dispatcher := registry.NewDispatcher(reg, cfg.ToolSchemaValidation)

	loopCfg := orchestrator.DefaultConfig()
	loopCfg.MaxIterations = cfg.MaxIterations
	loopCfg.MaxRetries = cfg.MaxRetries
	loopCfg.MaxTokens = cfg.MaxTokens
	loopCfg.MaxHistory = cfg.MaxHistory
	loopCfg.CheckpointInterval = cfg.CheckpointInterval
	loopCfg.Model = cfg.Model
	loopCfg.Temperature = cfg.Temperature
	loopCfg.Backend = cfg.CheckpointBackend
	loop := orchestrator.New(loopCfg, facade, dispatcher, reg, store, log)

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	loop.SetMetrics(metrics)

	return &env{cfg: cfg, store: store, extMgr: extMgr, mcp: mcpAdapter, loop: loop, log: log, metrics: metrics}, nil
}

func (e *env) Close(ctx context.Context) {
	if e.mcp != nil {
		_ = e.mcp.Close()
	}
	if e.extMgr != nil {
		_ = e.extMgr.Close(ctx)
	}
}

// loadMCPServers reads ".mcp.json" from the current directory, per the
// reference repository's internal/infra/mcp/config.go layout. A missing
// or unreadable file yields no servers rather than an error — MCP tool
// discovery is optional, never blocking session startup.
func loadMCPServers() map[string]registry.MCPServerConfig {
	data, err := os.ReadFile(".mcp.json")
	if err != nil {
		return nil
	}
	var raw struct {
		MCPServers map[string]struct {
			Command  string            `json:"command"`
			Args     []string          `json:"args"`
			Env      map[string]string `json:"env"`
			Disabled bool              `json:"disabled"`
		} `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	out := map[string]registry.MCPServerConfig{}
	for name, s := range raw.MCPServers {
		if s.Disabled {
			continue
		}
		out[name] = registry.MCPServerConfig{Command: s.Command, Args: s.Args, Env: s.Env}
	}
	return out
}

// projectHash derives the project scope a session is filed under from the
// working directory's absolute path, per spec.md §4.2's
// "projects/<project_hash>/sessions/<session_id>/" layout — the spec
// leaves the hash's derivation to the caller.
func projectHash(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:16]
}

func main() {
	if !isTTY() {
		color.NoColor = true
	}
	if err := newRootCommand().Execute(); err != nil {
		fmt.Printf("%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		baseDir    string
		systemPrompt string
	)

	root := &cobra.Command{
		Use:   "agentcore",
		Short: "Agent orchestration execution core",
		Long: fmt.Sprintf(`%s

A ReAct-style orchestration core: analyze, plan, execute, review, in a
single-threaded loop over a pluggable LLM provider and tool registry.`,
			bold("agentcore")),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "agentcore.yaml", "path to the runtime config file")
	root.PersistentFlags().StringVar(&baseDir, "state-dir", ".agentcore", "checkpoint store base directory")
	root.PersistentFlags().StringVar(&systemPrompt, "system", "", "system prompt for new sessions")

	viper.SetConfigName("agentcore")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	root.AddCommand(newRunCommand(&configPath, &baseDir, &systemPrompt))
	root.AddCommand(newResumeCommand(&configPath, &baseDir))
	root.AddCommand(newSessionsCommand(&configPath, &baseDir))
	root.AddCommand(newConfigCommand(&configPath))
	root.AddCommand(newVersionCommand())

	return root
}

func newRunCommand(configPath, baseDir, systemPrompt *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>",
		Short: "Start a new session and drive it to a terminal step",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignalHandling(func(ctx context.Context) error {
				e, err := newEnv(ctx, *configPath, *baseDir)
				if err != nil {
					return err
				}
				defer e.Close(ctx)

				task := strings.Join(args, " ")
				sess, err := session.New(projectHash("."), task, *systemPrompt, e.loop, e.store)
				if err != nil {
					return err
				}
				return runToTerminal(ctx, sess)
			})
		},
	}
}

func newResumeCommand(configPath, baseDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a paused or in-progress session and drive it to a terminal step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSignalHandling(func(ctx context.Context) error {
				e, err := newEnv(ctx, *configPath, *baseDir)
				if err != nil {
					return err
				}
				defer e.Close(ctx)

				sess, err := session.Resume(projectHash("."), args[0], e.loop, e.store)
				if err != nil {
					return err
				}
				return runToTerminal(ctx, sess)
			})
		},
	}
}

func runToTerminal(ctx context.Context, sess *session.Session) error {
	fmt.Printf("%s session %s\n", cyan("▸"), bold(sess.ID()))
	result, err := sess.Run(ctx)
	if result != nil {
		switch result.Step {
		case orchestrator.StepComplete:
			fmt.Printf("%s completed in %d iterations (%s)\n", green("✓"), result.Iterations, result.Duration)
		case orchestrator.StepPaused:
			fmt.Printf("%s paused after %d iterations — resume with: agentcore resume %s\n", yellow("‖"), result.Iterations, sess.ID())
		case orchestrator.StepError:
			fmt.Printf("%s failed after %d iterations: %v\n", red("✗"), result.Iterations, err)
		}
	}
	if err != nil && (result == nil || result.Step != orchestrator.StepPaused) {
		return err
	}
	return nil
}

func newSessionsCommand(configPath, baseDir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions for the current project",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(context.Background(), *configPath, *baseDir)
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			sessions, err := session.List(e.store, projectHash("."))
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println(gray("no sessions"))
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  %-10s  iter=%-4d  %s\n", bold(s.SessionID), string(s.WorkflowStep), s.Iteration, gray(s.TaskDescription))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and all its checkpoints",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(context.Background(), *configPath, *baseDir)
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			if err := session.Delete(e.store, projectHash("."), args[0]); err != nil {
				return err
			}
			fmt.Printf("%s deleted %s\n", green("✓"), args[0])
			return nil
		},
	})

	return cmd
}

func newConfigCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect runtime configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective runtime configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath, config.DefaultEnvLookup)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", bold("llm_provider"), cyan(cfg.LLMProvider))
			fmt.Printf("%s: %s\n", bold("model"), cyan(cfg.Model))
			fmt.Printf("%s: %d\n", bold("max_iterations"), cfg.MaxIterations)
			fmt.Printf("%s: %d\n", bold("max_retries"), cfg.MaxRetries)
			fmt.Printf("%s: %d\n", bold("checkpoint_interval"), cfg.CheckpointInterval)
			fmt.Printf("%s: %s\n", bold("default_mode"), cfg.DefaultMode)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a config file populated with documented defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(*configPath, config.Default()); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s\n", green("✓"), *configPath)
			return nil
		},
	})

	return cmd
}

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("agentcore " + version)
		},
	}
}

// withSignalHandling runs fn with a context that is cancelled on SIGINT or
// SIGTERM, so an in-flight tool call finishes and the session pauses with
// a checkpoint instead of terminating mid-write — spec.md §5's
// cancellation semantics, surfaced here as Ctrl-C.
func withSignalHandling(fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return fn(ctx)
}
