// Command hissvm runs an assembled module and, optionally, serves its
// state over the inspect HTTP API while it runs.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joek13/hissvm/config"
	"github.com/joek13/hissvm/inspect"
	"github.com/joek13/hissvm/internal/clilog"
	"github.com/joek13/hissvm/machine"
	"github.com/joek13/hissvm/module"
)

func main() {
	var (
		cfgPath     = flag.String("c", "", "path to a TOML tuning file")
		inspectAddr = flag.String("inspect", "", "if set, serve introspection endpoints on this address (e.g. :8080)")
		disasm      = flag.Bool("disasm", false, "print a disassembly of the module's code and exit")
		verbose     = flag.Bool("v", false, "verbose logging")
		noColor     = flag.Bool("n", false, "disable colored output")
	)
	flag.Parse()
	clilog.Init(*verbose, *noColor)

	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("usage: hissvm [options] <file.hissc>")
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal("loading config", "error", err)
		}
	}

	if err := run(args[0], cfg, *inspectAddr, *disasm, os.Stdout); err != nil {
		log.Fatal("execution failed", "error", err)
	}
}

func run(path string, cfg config.Config, inspectAddr string, disasm bool, w io.Writer) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	ld := module.NewLoader()
	mod, err := ld.Read(buf)
	if err != nil {
		return err
	}

	if disasm {
		instrs, err := machine.Disassemble(mod.Code)
		if err != nil {
			return err
		}
		for _, in := range instrs {
			fmt.Fprintln(w, in.String())
		}
		return nil
	}

	m, err := machine.New(mod,
		machine.WithMaxStackDepth(cfg.Machine.MaxStackDepth),
		machine.WithMaxFrameDepth(cfg.Machine.MaxFrameDepth),
		machine.WithStrictLocals(cfg.Machine.StrictLocals),
	)
	if err != nil {
		return err
	}

	if inspectAddr != "" {
		srv, err := inspect.NewServer(inspect.ServerConfig{ListenerAddr: inspectAddr}, mod, m)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil {
				log.Warn("inspect server stopped", "error", err)
			}
		}()
	}

	for {
		halted, err := m.Step(w)
		if err != nil {
			return err
		}
		if halted {
			return nil
		}
	}
}
