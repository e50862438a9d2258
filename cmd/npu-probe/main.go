// Command npu-probe inspects NPU enumeration and renders tab models in the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var colorMode string

var rootCmd = &cobra.Command{
	Use:           "npu-probe",
	Short:         "NPU discovery and tab rendering toolkit",
	Long:          "npu-probe lists the accelerators nputop-web would present and renders tab models from replay files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		profile, ok := colorProfile(colorMode)
		if !ok {
			return fmt.Errorf("unsupported --color value %q", colorMode)
		}
		if colorMode != "auto" {
			lipgloss.SetColorProfile(profile)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "Colorize output: auto, always or never")
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(renderCmd)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func colorProfile(mode string) (termenv.Profile, bool) {
	switch mode {
	case "auto":
		return lipgloss.ColorProfile(), true
	case "always":
		return termenv.ANSI256, true
	case "never":
		return termenv.Ascii, true
	default:
		return termenv.Ascii, false
	}
}

// terminalWidth reports the stdout width, or 0 when stdout is not a terminal.
func terminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	width, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return width
}
