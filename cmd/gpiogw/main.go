package main

import (
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	os.Exit(run(os.Args[1], os.Args[2:]))
}

func run(cmd string, args []string) int {
	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "action":
		return runActionNoun(args)
	case "task":
		return runTaskNoun(args)
	case "plugin":
		return runPluginNoun(args)

	// --- ROOT ALIASES ---
	case "start":
		return runStart(args)
	case "send":
		return runActionSend(args)
	case "history":
		return runHistory(args)
	case "watch":
		return runWatch(args)
	case "version":
		fmt.Printf("gpiogw version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Print(`gpiogw - GPIO action queue gateway

Usage:
  gpiogw <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle and health
  config    Local configuration
  action    Submit actions to a running gateway
  task      Running background tasks
  plugin    Loaded device handlers

System Commands:
  system start        Start the gateway in the foreground
  system status       Show health of a running gateway

Config Commands:
  config show         Print the effective configuration
  config check        Validate the configuration and exit

Action Commands:
  action send <file>  POST a JSON array of actions ("-" reads stdin)

Task Commands:
  task list           List running tasks
  task get <id>       Show one task
  task cancel <id>    Request cooperative cancellation

Plugin Commands:
  plugin list         Show loaded handlers and their state

General:
  start               Alias for 'system start'
  send <file>         Alias for 'action send'
  history             Show recent action outcomes
  watch               Live terminal monitor
  version             Show version information
  help                Show this help message

Remote commands read --addr and --token, or GPIOGW_ADDR and GPIOGW_TOKEN.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	return dispatchNoun("system", args, map[string]func([]string) int{
		"start":  runStart,
		"status": runSystemStatus,
	})
}

func runConfigNoun(args []string) int {
	return dispatchNoun("config", args, map[string]func([]string) int{
		"show":  runConfigShow,
		"check": runConfigCheck,
	})
}

func runActionNoun(args []string) int {
	return dispatchNoun("action", args, map[string]func([]string) int{
		"send": runActionSend,
	})
}

func runTaskNoun(args []string) int {
	return dispatchNoun("task", args, map[string]func([]string) int{
		"list":   runTaskList,
		"get":    runTaskGet,
		"cancel": runTaskCancel,
	})
}

func runPluginNoun(args []string) int {
	return dispatchNoun("plugin", args, map[string]func([]string) int{
		"list": runPluginList,
	})
}

func dispatchNoun(noun string, args []string, actions map[string]func([]string) int) int {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: gpiogw %s <action> [flags]\n", noun)
		return 1
	}
	if isHelpToken(args[0]) {
		fmt.Printf("Usage: gpiogw %s <action> [flags]\nRun 'gpiogw help' for the list of actions.\n", noun)
		return 0
	}
	fn, ok := actions[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown %s action: %s\n", noun, args[0])
		return 1
	}
	return fn(args[1:])
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}
