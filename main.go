// meminject injects a DLL into a running process, either by invoking the
// target's own loader or by manually mapping the image.
//
// WARNING: for authorized testing, debugging, and research on processes you
// own or have explicit permission to modify.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/steele123/meminject/core"
	"github.com/steele123/meminject/injection"
	"github.com/steele123/meminject/processes"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var (
		mode        = flag.String("mode", "inject", "Operation mode: inject, list, or interactive")
		configPath  = flag.String("config", "", "Configuration file path")
		pid         = flag.Uint("pid", 0, "Target process ID")
		procName    = flag.String("process", "", "Target process name (resolved via a process snapshot)")
		dllPath     = flag.String("dll", "", "Path to the DLL to inject")
		method      = flag.String("method", "", "Injection method: loadlibrary or manualmap")
		timeout     = flag.Duration("timeout", 0, "Remote thread wait timeout")
		watch       = flag.Bool("watch", false, "After injecting, re-inject on F5 (End quits)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version information")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("meminject v%s\nBuild: %s\nCommit: %s\n", version, buildTime, gitCommit)
		os.Exit(0)
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *method != "" {
		cfg.Injection.Method = *method
		if err := cfg.Validate(); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if *timeout > 0 {
		cfg.Injection.WaitTimeout = core.Duration(*timeout)
	}

	logger := core.NewLogger(*debug || cfg.Logging.Debug)
	defer logger.Close()
	if cfg.Logging.File != "" {
		if err := logger.SetFile(cfg.Logging.File); err != nil {
			logger.Warn("log file unavailable: %v", err)
		}
	}

	switch *mode {
	case "inject":
		runInject(logger, cfg, uint32(*pid), *procName, *dllPath, *watch)
	case "list":
		runList(logger)
	case "interactive":
		runInteractive(logger, cfg)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
}

func runInject(logger *core.Logger, cfg *core.Config, pid uint32, procName, dllPath string, watch bool) {
	if dllPath == "" {
		log.Fatal("a DLL path is required (-dll)")
	}

	target, err := resolveTarget(pid, procName)
	if err != nil {
		log.Fatalf("target: %v", err)
	}

	settings, err := cfg.InjectionSettings()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	injector := injection.New(settings)
	injector.SetLogger(logger)
	manager := processes.NewManager(logger)

	inject := func() bool {
		result, err := injector.Inject(target, dllPath)
		if err != nil {
			if kind, ok := injection.KindOf(err); ok {
				logger.Error("injection failed (%s): %v", kind, err)
			} else {
				logger.Error("injection failed: %v", err)
			}
			return false
		}
		fmt.Printf("[+] Injected %s into pid %d (module base 0x%x)\n",
			dllPath, result.PID, result.ModuleBase)
		for _, w := range result.Warnings {
			logger.Warn("%s", w)
		}
		// the exit code truncates the loader's base; a module snapshot has
		// the real one
		if base, ok, err := manager.FindModuleBase(target, filepath.Base(dllPath)); err == nil && ok {
			logger.Debug("module %s confirmed at 0x%x", filepath.Base(dllPath), base)
		}
		return true
	}

	if ok := inject(); !ok && !watch {
		os.Exit(1)
	}

	for watch {
		logger.Info("watching: F5 re-injects, End quits")
		again, err := waitForTrigger(pollInterval)
		if err != nil {
			log.Fatalf("watch: %v", err)
		}
		if !again {
			return
		}
		inject()
	}
}

func runList(logger *core.Logger) {
	manager := processes.NewManager(logger)
	infos, err := manager.List()
	if err != nil {
		log.Fatalf("list: %v", err)
	}
	printProcessTable(infos)
}

// resolveTarget picks the pid, resolving a name through a process snapshot
// when no explicit pid was given.
func resolveTarget(pid uint32, name string) (uint32, error) {
	if pid != 0 {
		return pid, nil
	}
	if name == "" {
		return 0, fmt.Errorf("a target is required (-pid or -process)")
	}
	found, ok, err := processes.FindPID(name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no process named %q", name)
	}
	return found, nil
}

// pollInterval paces the hotkey watch loop.
const pollInterval = 50 * time.Millisecond
