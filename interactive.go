package main

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/steele123/meminject/core"
	"github.com/steele123/meminject/injection"
	"github.com/steele123/meminject/processes"
)

// getHistoryPath returns a path for the history file
func getHistoryPath() string {
	if u, err := user.Current(); err == nil {
		historyDir := filepath.Join(u.HomeDir, ".meminject")
		os.MkdirAll(historyDir, 0755)
		return filepath.Join(historyDir, "history")
	}
	return filepath.Join(os.TempDir(), "meminject_history")
}

// runInteractive starts a small shell for picking targets and firing
// injections without restarting the binary.
func runInteractive(logger *core.Logger, cfg *core.Config) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "meminject> ",
		HistoryFile: getHistoryPath(),
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("list"),
			readline.PcItem("modules"),
			readline.PcItem("method",
				readline.PcItem("loadlibrary"),
				readline.PcItem("manualmap"),
			),
			readline.PcItem("timeout"),
			readline.PcItem("config"),
			readline.PcItem("inject"),
			readline.PcItem("exit"),
			readline.PcItem("quit"),
		),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		logger.Error("readline: %v", err)
		return
	}
	defer rl.Close()

	manager := processes.NewManager(logger)

	fmt.Println("[*] meminject interactive mode. Type 'help' for commands.")

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return
			}
			logger.Error("input: %v", err)
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help", "?":
			printInteractiveHelp()

		case "list", "ps":
			infos, err := manager.List()
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			printProcessTable(infos)

		case "modules":
			if len(fields) != 2 {
				fmt.Println("[!] Usage: modules <pid|name>")
				continue
			}
			pid, err := parseTarget(fields[1])
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			mods, err := manager.ListModules(pid)
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			printModuleTable(mods)

		case "method":
			if len(fields) != 2 {
				fmt.Printf("[*] Current method: %s\n", cfg.Injection.Method)
				continue
			}
			if _, err := injection.MethodByName(fields[1]); err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			cfg.Injection.Method = fields[1]
			fmt.Printf("[+] Method set to %s\n", fields[1])

		case "timeout":
			if len(fields) != 2 {
				fmt.Printf("[*] Current timeout: %s\n", cfg.Injection.WaitTimeout)
				continue
			}
			d, err := time.ParseDuration(fields[1])
			if err != nil || d <= 0 {
				fmt.Println("[!] Usage: timeout <duration>, e.g. timeout 5s")
				continue
			}
			cfg.Injection.WaitTimeout = core.Duration(d)
			fmt.Printf("[+] Timeout set to %s\n", d)

		case "config":
			fmt.Printf("[*] method=%s timeout=%s free_transient_allocations=%v\n",
				cfg.Injection.Method, cfg.Injection.WaitTimeout,
				cfg.Injection.FreeTransientAllocations)

		case "inject":
			if len(fields) != 3 {
				fmt.Println("[!] Usage: inject <pid|name> <dll path>")
				continue
			}
			pid, err := parseTarget(fields[1])
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			settings, err := cfg.InjectionSettings()
			if err != nil {
				fmt.Printf("[!] %v\n", err)
				continue
			}
			injector := injection.New(settings)
			injector.SetLogger(logger)
			result, err := injector.Inject(pid, fields[2])
			if err != nil {
				if kind, ok := injection.KindOf(err); ok {
					fmt.Printf("[!] Injection failed (%s): %v\n", kind, err)
				} else {
					fmt.Printf("[!] Injection failed: %v\n", err)
				}
				continue
			}
			fmt.Printf("[+] Injected into pid %d (module base 0x%x, %s)\n",
				result.PID, result.ModuleBase, result.Duration.Round(time.Millisecond))
			for _, w := range result.Warnings {
				fmt.Printf("[!] Warning: %s\n", w)
			}

		case "exit", "quit":
			return

		default:
			fmt.Printf("[!] Unknown command %q. Type 'help' for commands.\n", fields[0])
		}
	}
}

func printInteractiveHelp() {
	fmt.Println(`Commands:
  list                    List running processes
  modules <pid|name>      List modules loaded in a process
  method [name]           Show or set the injection method (loadlibrary, manualmap)
  timeout [duration]      Show or set the remote thread wait timeout
  config                  Show the active injection settings
  inject <pid|name> <dll> Inject a DLL into a process
  exit                    Leave the shell`)
}

// parseTarget accepts either a numeric pid or a process name.
func parseTarget(arg string) (uint32, error) {
	if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
		return uint32(n), nil
	}
	pid, ok, err := processes.FindPID(arg)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no process named %q", arg)
	}
	return pid, nil
}

func printProcessTable(infos []processes.ProcessInfo) {
	if len(infos) == 0 {
		fmt.Println("[*] No processes found")
		return
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"PID", "Name", "Path"})

	for _, info := range infos {
		t.AppendRow(table.Row{info.PID, info.Name, info.Path})
	}

	fmt.Println(t.Render())
}

func printModuleTable(mods []processes.ModuleInfo) {
	if len(mods) == 0 {
		fmt.Println("[*] No modules found")
		return
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleColoredBright)
	t.AppendHeader(table.Row{"Base", "Size", "Name"})

	for _, mod := range mods {
		t.AppendRow(table.Row{fmt.Sprintf("0x%x", mod.Base), mod.Size, mod.Name})
	}

	fmt.Println(t.Render())
}
