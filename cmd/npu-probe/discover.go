package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skobkin/nputop-web/internal/npu"
	"github.com/skobkin/nputop-web/internal/tab"
)

var (
	discoverSysfs string
	discoverJSON  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List accelerators found under sysfs",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
		infos, err := npu.Discover(discoverSysfs, logger.With("component", "npu_discovery"))
		if err != nil {
			return fmt.Errorf("npu discovery: %w", err)
		}
		return writeDiscovery(cmd.OutOrStdout(), infos, discoverJSON)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverSysfs, "sysfs", envOrDefault("APP_SYSFS_ROOT", "/sys"), "Path to sysfs root")
	discoverCmd.Flags().BoolVar(&discoverJSON, "json", false, "Emit discovery result as JSON")
}

type discoveredTab struct {
	TabID string `json:"tab_id"`
	npu.Info
}

func writeDiscovery(w io.Writer, infos []npu.Info, asJSON bool) error {
	entries := make([]discoveredTab, 0, len(infos))
	for _, info := range infos {
		dev := info.Device()
		idSource := dev.BusSlot
		if idSource == "" {
			idSource = dev.Key
		}
		entries = append(entries, discoveredTab{
			TabID: tab.NewIdentity(idSource, dev.ModelName).TabID,
			Info:  info,
		})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No NPUs detected")
		return err
	}

	header := lipgloss.NewStyle().Bold(true)
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	for _, entry := range entries {
		fmt.Fprintf(w, "%s %s\n", header.Render(entry.TabID), dim.Render("("+entry.ID+")"))
		fmt.Fprintf(w, "  model:  %s\n", orNA(entry.Model))
		fmt.Fprintf(w, "  vendor: %s\n", orNA(entry.Vendor))
		fmt.Fprintf(w, "  driver: %s\n", orNA(entry.Driver))
		fmt.Fprintf(w, "  pci id: %s\n", orNA(entry.PCIID))
		if _, err := fmt.Fprintf(w, "  node:   %s\n", orNA(entry.Node)); err != nil {
			return err
		}
	}
	return nil
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
