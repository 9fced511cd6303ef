// Command key-mods is the engine's entry point: it loads the app config,
// grabs the configured input devices, creates the virtual output keyboard,
// parses and runs the startup script, and drives the cooperative scheduler
// until a running task calls exit() or the process receives SIGINT/SIGTERM.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"key-mods/internal/appconfig"
	"key-mods/internal/device"
	"key-mods/internal/interp"
	"key-mods/internal/mapping"
	"key-mods/internal/output"
	"key-mods/internal/parser"
	"key-mods/internal/router"
	"key-mods/internal/task"
	"key-mods/internal/window"
)

var version = "0.1.0"

func warn(format string, args ...any) {
	color.Yellow("key-mods: warn: "+format, args...)
}

func fail(format string, args ...any) {
	color.Red("key-mods: "+format, args...)
}

// parseDevicesFlag reads -d <devices-file>, overriding config.toml's
// devices_file, and returns whatever positional arguments getopt left
// behind (the ninja.go retrieval example's "opts, optind, err :=
// getopt.Getopts(args, optstring)" idiom).
func parseDevicesFlag(args []string) (devicesFile string, rest []string, err error) {
	opts, optind, err := getopt.Getopts(args, "d:")
	if err != nil {
		return "", nil, err
	}
	for _, o := range opts {
		if o.Option == 'd' {
			devicesFile = o.Value
		}
	}
	return devicesFile, args[optind:], nil
}

func run(devicesFileFlag string) int {
	dir := appconfig.ConfigDir()
	cfg, err := appconfig.Load(dir)
	if err != nil {
		fail("load config: %v", err)
		return 2
	}
	if devicesFileFlag != "" {
		cfg.DevicesFile = devicesFileFlag
	}

	scriptPath := cfg.ScriptFile
	if scriptPath == "" {
		scriptPath = dir + "/example.km"
	}
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		fail("read script %s: %v\nrun `key-mods init` to create one", scriptPath, err)
		return 2
	}
	prog, err := parser.ParseProgram(string(src))
	if err != nil {
		fail("parse %s: %v", scriptPath, err)
		return 2
	}

	devSrc, err := device.Open(cfg.DevicesFile)
	if err != nil {
		fail("open input devices: %v", err)
		return 2
	}
	defer devSrc.Close()
	devSrc.WarnFunc = warn

	sink, err := output.Open(cfg.UinputPath, "key-mods")
	if err != nil {
		fail("create virtual keyboard: %v", err)
		return 2
	}
	defer sink.Close()

	win := window.New(time.Duration(cfg.WindowPollMs) * time.Millisecond)
	defer win.Close()

	table := mapping.NewTable()
	sched := task.NewScheduler()
	runner := shellRunner{}
	// ip.Sink is wired to the router below, since send()'s modifier
	// bracketing needs the router's live hardware ModSet — router.New
	// needs ip to exist first, so Sink starts nil and is patched in once
	// both are constructed.
	ip := interp.New(table, sched, nil, win, runner, cfg.FuelLimit)

	rt := router.New(devSrc, sink, table, ip, sched, func(err error) {
		fail("router: %v", err)
	})
	ip.Sink = rt
	sched.SpawnRouter("router", rt.Run)

	scriptErr := func(err error) {
		fail("script error: %v", err)
	}
	ip.RunProgram(prog, scriptErr)

	reloader, err := appconfig.NewScriptReloader(ip, scriptPath, scriptErr, func() {
		fmt.Println("key-mods: reloaded", scriptPath)
	})
	if err != nil {
		warn("script reload disabled: %v", err)
	} else {
		defer reloader.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nkey-mods: shutting down")
		sched.Exit(0)
	}()

	fmt.Printf("key-mods: running (fuel limit %d, sleep floor %s)\n", cfg.FuelLimit, cfg.SleepFloor())
	return sched.Run()
}

func dumpMappings(scriptArg string) int {
	dir := appconfig.ConfigDir()
	cfg, err := appconfig.Load(dir)
	if err != nil {
		fail("load config: %v", err)
		return 2
	}
	scriptPath := scriptArg
	if scriptPath == "" {
		scriptPath = cfg.ScriptFile
	}
	if scriptPath == "" {
		scriptPath = dir + "/example.km"
	}
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		fail("read script %s: %v", scriptPath, err)
		return 2
	}
	prog, err := parser.ParseProgram(string(src))
	if err != nil {
		fail("parse %s: %v", scriptPath, err)
		return 2
	}

	table := mapping.NewTable()
	sched := task.NewScheduler()
	runner := shellRunner{}
	ip := interp.New(table, sched, nil, nil, runner, cfg.FuelLimit)
	ip.RunProgram(prog, func(err error) { fail("script error: %v", err) })
	sched.Run()

	out, err := yaml.Marshal(table.Dump())
	if err != nil {
		fail("marshal mappings: %v", err)
		return 2
	}
	os.Stdout.Write(out)
	return 0
}

func main() {
	devicesFile, rest, err := parseDevicesFlag(os.Args[1:])
	if err != nil {
		fail("%v", err)
		os.Exit(1)
	}

	if len(rest) > 0 {
		switch rest[0] {
		case "init":
			dir := appconfig.ConfigDir()
			fmt.Printf("key-mods: initializing config in %s\n", dir)
			if err := appconfig.Init(dir); err != nil {
				fail("%v", err)
				os.Exit(1)
			}
			fmt.Println("key-mods: config initialized")
			return
		case "version":
			fmt.Printf("key-mods %s\n", version)
			return
		case "--dump-mappings":
			var scriptArg string
			if len(rest) > 1 {
				scriptArg = rest[1]
			}
			os.Exit(dumpMappings(scriptArg))
		default:
			fmt.Fprintf(os.Stderr, "usage: key-mods [-d devices-file] [init|version|--dump-mappings [script.km]]\n")
			os.Exit(1)
		}
	}

	os.Exit(run(devicesFile))
}
