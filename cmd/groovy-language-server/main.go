// Command groovy-language-server boots the core described by this
// repository: it wires the File Contents Store, AST Index, Project Scope,
// Scope Manager, Resolution Coordinator, Compilation Service and Editor-
// Query Providers into one running process and drives them from a single
// Transport & Dispatch connection (§6).
//
// Flag and lifecycle shape grounded on the teacher's cmd/nerd/main.go
// (cobra root command, PersistentPreRun logger bring-up, signal-driven
// graceful shutdown) and cmd/nerd/cmd_mangle_lsp.go (the teacher's own
// LSP entry point: context cancellation on SIGINT/SIGTERM, ServeStdio).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/cache"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/classpath"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/compiler"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/config"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/document"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/events"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/frontend"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/resolution"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/scopemanager"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/sourcelocator"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/transport"
)

var (
	workspaceFlag        string
	tcpFlag              string
	classpathCacheFlag   bool
	backfillSiblingsFlag bool
	scopeTTLFlag         int
	memPressureFlag      float64
	rejectedPkgsFlag     []string
	resolverPoolFlag     int
	verboseFlag          bool

	// console is the zap logger for stderr process-boundary output (process
	// start/stop, fatal errors) — kept side by side with the file-based
	// internal/logging categories exactly as cmd/nerd/main.go wires both: a
	// zap logger for the operator's terminal, a category-keyed file logger
	// for everything greppable afterwards.
	console *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "groovy-language-server",
	Short: "Groovy/Java Language Server core",
	Long: `groovy-language-server hosts the project-discovery, classpath-
resolution, compilation and editor-query core for a Groovy/Java editor
integration. It speaks the editor protocol (§6) over stdio by default, or
over a single loopback TCP connection with --tcp [port].`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verboseFlag {
			zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		l, err := zapCfg.Build()
		if err != nil {
			return fmt.Errorf("build console logger: %w", err)
		}
		console = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if console != nil {
			_ = console.Sync()
		}
	},
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&workspaceFlag, "workspace", "w", ".", "workspace root to index")
	f.StringVar(&tcpFlag, "tcp", "", "serve over TCP on 127.0.0.1:<port> instead of stdio (port optional, default 1044)")
	rootCmd.Flags().Lookup("tcp").NoOptDefVal = "1044"
	f.BoolVar(&classpathCacheFlag, "classpath-cache", true, "enable the on-disk classpath cache (§6: classpathCache)")
	f.BoolVar(&backfillSiblingsFlag, "backfill-siblings", false, "pre-resolve sibling subprojects in the background (§6: backfillSiblingProjects)")
	f.IntVar(&scopeTTLFlag, "scope-ttl-seconds", 300, "idle scope TTL in seconds; 0 disables TTL eviction (§6: scopeEvictionTTLSeconds)")
	f.Float64Var(&memPressureFlag, "memory-pressure-threshold", 0.85, "heap fraction that triggers pressure eviction (§6: memoryPressureThreshold)")
	f.StringSliceVar(&rejectedPkgsFlag, "rejected-packages", nil, "additional directory names excluded from project discovery (§6: rejectedPackages)")
	f.IntVar(&resolverPoolFlag, "resolver-concurrency", 4, "bounded resolver pool size (§5: Import pool)")
	f.BoolVarP(&verboseFlag, "verbose", "v", false, "debug-level console output")
}

func main() {
	// The closest Go analogue to an uncaught-exception hook: anything that
	// panics out of the command is logged before the process dies, instead
	// of unwinding silently past the file loggers.
	defer func() {
		if r := recover(); r != nil {
			logging.Boot("fatal panic: %v\n%s", r, debug.Stack())
			fmt.Fprintf(os.Stderr, "fatal panic: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stubClasspathProvider is the seam for the classpath-provider collaborator
// (§1: "Build-tool subprocess invocation ... treated as an opaque classpath
// provider"). The core never invokes a build tool itself; a real
// deployment injects a provider that shells out to the project's build
// tool here. Absent one, every project resolves to an empty classpath and
// stays queryable in best-effort (Unresolved-style) mode rather than
// blocking forever.
type stubClasspathProvider struct{}

func (stubClasspathProvider) Resolve(ctx context.Context, root classpath.Root) (classpath.Path, error) {
	logging.Resolution("no classpath provider configured; resolving %s to an empty classpath", root)
	return classpath.New(nil), nil
}

func run(cmd *cobra.Command, args []string) error {
	workspaceRoot, err := filepath.Abs(workspaceFlag)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}

	var tcpPort int
	if tcpFlag != "" {
		tcpPort, err = strconv.Atoi(tcpFlag)
		if err != nil || tcpPort <= 0 || tcpPort > 65535 {
			return fmt.Errorf("invalid --tcp port %q", tcpFlag)
		}
	}

	if err := logging.Initialize(workspaceRoot); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
	}
	defer logging.CloseAll()
	logging.Boot("starting groovy-language-server for workspace %s", workspaceRoot)
	console.Info("starting groovy-language-server", zap.String("workspace", workspaceRoot))

	cfg := config.Default()
	cfg.ClasspathCache = classpathCacheFlag
	cfg.BackfillSiblingProjects = backfillSiblingsFlag
	cfg.ScopeEvictionTTLSeconds = scopeTTLFlag
	cfg.MemoryPressureThreshold = memPressureFlag
	cfg.RejectedPackages = rejectedPkgsFlag
	cfg.ResolverConcurrency = resolverPoolFlag

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Boot("received shutdown signal")
		console.Info("received shutdown signal")
		cancel()
	}()

	bus := events.NewBus(256)
	defer bus.Close()

	store := document.NewStore()
	fe := frontend.NewLineScanner()
	svc := compiler.New(fe, bus)

	manager := scopemanager.New(cfg, func(root classpath.Root) {
		svc.DropProject(root)
		bus.Publish(events.Event{Kind: events.KindScopeEvicted, ProjectRoot: root.String()})
	}, func(s scopemanager.Sample) {
		bus.Publish(events.Event{
			Kind:     events.KindMemoryUsage,
			HeapUsed: s.HeapUsed,
			HeapSys:  s.HeapSys,
			Active:   s.Counts.Active, Evicted: s.Counts.Evicted, Unresolved: s.Counts.Unresolved,
		})
	})
	go manager.Run()
	defer manager.Stop()

	locator, err := sourcelocator.New(filepath.Join(workspaceRoot, ".glsp", "source-index.db"))
	if err != nil {
		return fmt.Errorf("open source locator: %w", err)
	}
	defer func() { _ = locator.Close() }()

	coord := resolution.New(ctx, cfg, workspaceRoot, manager, store, svc, fe, stubClasspathProvider{}, bus)
	defer coord.Shutdown()

	roots := classpath.DiscoverRoots(workspaceRoot, cfg.RejectedPackages)
	logging.Boot("discovered %d project root(s)", len(roots))
	if cfg.ClasspathCache {
		if err := coord.WarmStart(roots); err != nil {
			logging.Boot("cache warm-start failed: %v", err)
		}
	} else {
		for _, root := range roots {
			manager.Register(root)
		}
	}

	if _, err := startDescriptorWatcher(ctx, roots, manager); err != nil {
		logging.Boot("descriptor watcher disabled: %v", err)
	}

	server := transport.NewServer(workspaceRoot, store, manager, svc, coord, locator, bus)

	ch, err := openChannel(tcpFlag != "", tcpPort)
	if err != nil {
		return err
	}

	label := transportLabel(tcpFlag != "", tcpPort)
	logging.Boot("ready, serving on %s", label)
	console.Info("ready", zap.String("transport", label), zap.Int("roots", len(roots)))
	if err := server.Serve(ctx, ch); err != nil {
		logging.Boot("server exited: %v", err)
		console.Warn("server exited", zap.Error(err))
		return nil
	}
	console.Info("server exited cleanly")
	return nil
}

// startDescriptorWatcher is the server-side fallback for
// workspace/didChangeWatchedFiles (§6): not every client registers file
// watchers with the server, so this watches each discovered Project Root
// directly with fsnotify and invalidates its scope on any change, the same
// effect internal/transport.handleDidChangeWatchedFiles produces for a
// client-reported change.
func startDescriptorWatcher(ctx context.Context, roots []classpath.Root, manager *scopemanager.Manager) (*cache.DescriptorWatcher, error) {
	w, err := cache.NewDescriptorWatcher(func(path string) {
		for _, root := range roots {
			if !classpath.IsUnderRoot(root.String(), path) {
				continue
			}
			if sc, ok := manager.Scope(root); ok {
				sc.Invalidate()
				logging.Cache("invalidated scope %s after on-disk change to %s", root, path)
			}
			return
		}
	})
	if err != nil {
		return nil, err
	}
	for _, root := range roots {
		if err := w.Watch(root.String()); err != nil {
			logging.Boot("watch %s failed: %v", root, err)
		}
	}
	go w.Run(ctx)
	return w, nil
}

// openChannel builds the Transport & Dispatch channel (§6): TCP on the
// loopback interface when requested, stdio otherwise. In stdio mode,
// os.Stdout is captured for the framing channel and then replaced with a
// null sink, so any stray fmt.Print/log line elsewhere in the process
// writes to /dev/null instead of corrupting the Content-Length-framed
// stream the client is parsing.
func openChannel(useTCP bool, port int) (transport.Channel, error) {
	if useTCP {
		return transport.ListenTCP(port)
	}

	realStdout := os.Stdout
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open null sink: %w", err)
	}
	os.Stdout = devNull
	return transport.NewStdioChannel(os.Stdin, realStdout), nil
}

func transportLabel(useTCP bool, port int) string {
	if useTCP {
		return fmt.Sprintf("tcp://127.0.0.1:%d", port)
	}
	return "stdio"
}
