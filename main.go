/*
This is an example of application that will use the engine package to
exercise the resource subsystem: it imports the testbed assets, registers
them in the project manifest and resolves them back through their UUIDs.
*/
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/ember/engine"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/testbed"
)

func main() {
	dir := "testbed/project"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	cfg, err := testbed.Setup(dir)
	if err != nil {
		panic(err)
	}

	e, err := engine.New(cfg)
	if err != nil {
		panic(err)
	}
	if err := e.Initialize(); err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		_ = e.Shutdown()
		os.Exit(0)
	}()

	if err := e.ImportAll(); err != nil {
		core.LogError("import pass had failures: %v", err)
	}

	// Round-trip every registered resource through its UUID.
	for _, path := range e.Manager().DefaultManifest().Paths() {
		id, _ := e.Manager().UUIDFromPath(path)
		resolved, err := e.Resolve(id)
		if err != nil {
			core.LogError("resolve %s: %v", id, err)
			continue
		}
		artifact, err := e.Load(resolved)
		if err != nil {
			core.LogError("load %s: %v", resolved, err)
			continue
		}
		core.LogInfo("%s -> %s (%s, %d bytes)", id, resolved, artifact.Type, len(artifact.Data))
	}

	if err := e.Shutdown(); err != nil {
		panic(err)
	}
}
