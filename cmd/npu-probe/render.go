package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/skobkin/nputop-web/internal/i18n"
	"github.com/skobkin/nputop-web/internal/ingest"
	"github.com/skobkin/nputop-web/internal/tab"
	"github.com/skobkin/nputop-web/internal/units"
)

var (
	renderFile     string
	renderLocale   string
	renderCatalog  string
	renderTempUnit string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render NPU tabs from a replay file",
	Long:  "render sets up one tab per replay device, applies every snapshot in order and prints the resulting tabs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if renderFile == "" {
			return fmt.Errorf("--file is required")
		}
		doc, err := ingest.LoadFile(renderFile)
		if err != nil {
			return err
		}
		translator, err := i18n.New(renderLocale, renderCatalog)
		if err != nil {
			return err
		}
		unit, err := units.ParseTemperatureUnit(renderTempUnit)
		if err != nil {
			return err
		}
		views := replayViews(doc, translator, units.Formatter{TempUnit: unit})
		return writeCards(cmd.OutOrStdout(), views, terminalWidth())
	},
}

func init() {
	renderCmd.Flags().StringVarP(&renderFile, "file", "f", "", "Replay file with devices and snapshots (YAML or JSON)")
	renderCmd.Flags().StringVar(&renderLocale, "locale", envOrDefault("APP_LOCALE", "auto"), "Display locale")
	renderCmd.Flags().StringVar(&renderCatalog, "catalog", envOrDefault("APP_LOCALE_CATALOG", ""), "Optional YAML translation overlay")
	renderCmd.Flags().StringVar(&renderTempUnit, "temp-unit", envOrDefault("APP_TEMPERATURE_UNIT", "celsius"), "Temperature unit: celsius, fahrenheit or kelvin")
}

// replayViews runs setup for every device and one refresh per snapshot,
// returning the final views sorted by ordering.
func replayViews(doc ingest.File, loc tab.Localizer, formatter tab.UnitFormatter) []tab.View {
	pages := make(map[string]*tab.NPU, len(doc.Devices))
	for i, dev := range doc.Devices {
		pages[dev.DeviceKey()] = tab.NewNPU(dev, uint32(i), loc, formatter)
	}

	for _, payload := range doc.Snapshots {
		page, ok := pages[payload.DeviceKey]
		if !ok {
			continue
		}
		at := payload.Timestamp
		if at.IsZero() {
			at = time.Now().UTC()
		}
		page.Refresh(payload.Snapshot, at)
	}

	views := make([]tab.View, 0, len(pages))
	for _, page := range pages {
		views = append(views, page.View())
	}
	tab.Sort(views)
	return views
}

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(14)
	barFill    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	barEmpty   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const barWidth = 24

// writeCards prints one card per view. With a known width, cards are laid out
// side by side as long as a row fits.
func writeCards(w io.Writer, views []tab.View, width int) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No NPUs in replay file")
		return err
	}

	var rows, row []string
	rowWidth := 0
	for _, view := range views {
		card := renderCard(view)
		cardWidth := lipgloss.Width(card)
		if len(row) > 0 && (width <= 0 || rowWidth+cardWidth > width) {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, card)
		rowWidth += cardWidth
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, rows...))
	return err
}

func renderCard(view tab.View) string {
	title := view.TabName
	if view.TabDetail != "" {
		title += " " + view.TabDetail
	}

	rows := []string{
		titleStyle.Render(title),
		view.UsageSummary,
		"",
		row("Usage", bar(view.Usage, view.UsageVisible)+" "+view.Subtitles.Usage),
	}
	memoryFraction := 0.0
	if view.MemoryFraction != nil {
		memoryFraction = *view.MemoryFraction
	}
	rows = append(rows,
		row("Memory", bar(memoryFraction, view.MemoryVisible)+" "+view.Subtitles.Memory),
		row("Temperature", view.Subtitles.Temperature),
		row("Power", view.Subtitles.Power),
		row("Core clock", view.Subtitles.CoreClock),
		row("Memory clock", view.Subtitles.MemoryClock),
		row("Max power cap", view.Subtitles.MaxPowerCap),
		row("Manufacturer", view.Subtitles.Manufacturer),
		row("Bus slot", view.Subtitles.BusSlot),
		row("Driver", view.Subtitles.Driver),
	)
	return cardStyle.Render(strings.Join(rows, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func bar(fraction float64, visible bool) string {
	if !visible {
		return barEmpty.Render(strings.Repeat("·", barWidth))
	}
	filled := int(tab.FiniteOr(fraction, 0)*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return barFill.Render(strings.Repeat("█", filled)) + barEmpty.Render(strings.Repeat("░", barWidth-filled))
}
