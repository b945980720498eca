// Command hissasm assembles a textual module into the binary format
// read by hissvm.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joek13/hissvm/asm"
	"github.com/joek13/hissvm/config"
	"github.com/joek13/hissvm/internal/clilog"
)

func main() {
	var (
		outPath = flag.String("o", "", "output path (default: <input stem>.hissc)")
		cfgPath = flag.String("c", "", "path to a TOML tuning file")
		verbose = flag.Bool("v", false, "verbose logging")
		noColor = flag.Bool("n", false, "disable colored output")
	)
	flag.Parse()
	clilog.Init(*verbose, *noColor)

	args := flag.Args()
	if len(args) != 1 {
		log.Fatal("usage: hissasm [options] <file.hissa>")
	}
	srcPath := args[0]

	out := *outPath
	if out == "" {
		stem := strings.TrimSuffix(srcPath, filepath.Ext(srcPath))
		out = stem + ".hissc"
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal("loading config", "error", err)
		}
	}

	if err := run(srcPath, out, cfg); err != nil {
		log.Fatal("assembly failed", "error", err)
	}
}

func run(srcPath, outPath string, cfg config.Config) error {
	src, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", srcPath, err)
	}

	a := asm.New(string(src), asm.WithMaxConstants(cfg.Assembler.MaxConstants))
	buf, err := a.ReadModule()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}

	log.Info("wrote module", "path", outPath, "bytes", len(buf))
	return nil
}
