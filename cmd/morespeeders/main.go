package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/morespeeders/extension/internal/app"
	"github.com/morespeeders/extension/internal/config"
	"github.com/morespeeders/extension/internal/demo"
	"github.com/morespeeders/extension/internal/geo"
	"github.com/morespeeders/extension/internal/world/native"
	"github.com/morespeeders/extension/pkg/hostbridge"
	"github.com/morespeeders/extension/pkg/world"
)

// Set at build time with -ldflags.
var (
	CurrentExtensionVersion = "0.0.1"
	BuildDate               = "unknown"
)

var (
	initOnce   sync.Once
	hostBridge *hostbridge.Bridge
	hostWorld  *native.Adapter
	extension  *app.App
)

// bridge initializes the extension on first use. The host always calls in
// through one of the exports, so nothing runs at library load.
func bridge() *hostbridge.Bridge {
	initOnce.Do(initExtension)
	return hostBridge
}

func initExtension() {
	hostWorld = native.New(nil, nil)
	hostBridge = hostbridge.New(CurrentExtensionVersion)

	a, err := app.New(app.Options{
		Folder:    moduleFolder(),
		Version:   CurrentExtensionVersion,
		BuildDate: BuildDate,
		World:     hostWorld,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "morespeeders: failed to initialize: %v\n", err)
		return
	}
	extension = a
	slog.SetDefault(a.SlogManager.Component("native"))
	hostBridge.SetDispatcher(a.Dispatcher)
	a.Logger.Info("Extension loaded", "version", CurrentExtensionVersion, "folder", moduleFolder())

	if config.GetBool("selfTick") {
		a.StartLoop()
		a.Logger.Info("Ticking from the extension", "interval", config.TickInterval())
	}
}

// Logger returns the session logger once the extension is initialized.
func Logger() *slog.Logger {
	if extension != nil {
		return extension.Logger
	}
	return slog.Default()
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("No arguments provided. Usage: morespeeders demo [ticks] [x,y,z]")
		return
	}

	switch strings.ToLower(args[0]) {
	case "demo":
		ticks := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid tick count %q\n", args[1])
				os.Exit(2)
			}
			ticks = n
		}
		var subject *world.Vector3
		if len(args) > 2 {
			p, err := geo.ParseVector(args[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid subject position %q: %v\n", args[2], err)
				os.Exit(2)
			}
			subject = &p
		}
		wd, _ := os.Getwd()
		if _, err := demo.Run(demo.Options{
			Folder:  wd,
			Ticks:   ticks,
			Seed:    1,
			Subject: subject,
			Out:     os.Stdout,
			Log:     os.Stderr,
		}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Printf("Unknown command %q. Usage: morespeeders demo [ticks] [x,y,z]\n", args[0])
		os.Exit(2)
	}
}
