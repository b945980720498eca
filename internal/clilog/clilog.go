// Package clilog configures the charmbracelet/log console logger shared
// by the CLI entrypoints. It is distinct from the structured zap logging
// used by the library packages (asm, module, machine): this is
// leveled, colored terminal output for a human running the tool.
package clilog

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Init installs a console logger as the charmbracelet/log default.
func Init(verbose, noColor bool) {
	log.SetDefault(log.NewWithOptions(io.MultiWriter(os.Stderr),
		log.Options{
			ReportTimestamp: false,
			TimeFormat:      time.RFC3339,
			Prefix:          "HISS",
		}))

	if !verbose {
		log.SetLevel(log.WarnLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	log.SetColorProfile(termenv.ANSI256)
	if noColor {
		log.SetColorProfile(termenv.Ascii)
	}
}
