package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"go-chi-calculator/internal/calculator"
)

var longHelp = strings.TrimSpace(`
Keypad calculator for the terminal.

Type keys separated by spaces or run together; each line is applied in order.
  0-9 . + - * /          digits, decimal point, operators
  Enter  =               evaluate
  Esc  c                 clear entry
  Shift+Escape  C        clear everything
  Backspace (bs)         delete last character
  neg  ±                 toggle sign
  :history               show or hide the history list
  :select N              load the result of history entry N
  :sound                 toggle the terminal bell
  :quit                  exit
`)

var exampleUsage = strings.TrimSpace(`
  echo '1 + 2 + 3 =' | calc
  calc --locale de-CH --history-size 5 --sound
`)

type options struct {
	locale        string
	historySize   int
	errorRecovery time.Duration
	sound         bool
	verbose       bool
}

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.locale, "locale", "en", "BCP 47 locale used to group whole numbers")
	fs.IntVar(&o.historySize, "history-size", calculator.DefaultHistorySize, "number of calculations kept in history")
	fs.DurationVar(&o.errorRecovery, "error-recovery", calculator.DefaultRecoveryDelay, "how long Error stays on the display")
	fs.BoolVar(&o.sound, "sound", false, "start with sound on (rings the terminal bell on key presses)")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log engine activity to stderr")
}

func main() {
	var opts options

	root := &cobra.Command{
		Use:           "calc",
		Short:         "Keypad calculator for the terminal",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.historySize < 1 {
				return fmt.Errorf("--history-size must be positive, got %d", opts.historySize)
			}
			return run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}
	bindFlags(root.Flags(), &opts)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "calc:", err)
		os.Exit(1)
	}
}
