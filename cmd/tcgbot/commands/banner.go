package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/teranos/tcgbot/am"
	"github.com/teranos/tcgbot/logger"
	"github.com/teranos/tcgbot/version"
)

// printStartupBanner prints the logo and the effective runtime settings
func printStartupBanner(verbosity int, cfg *am.Config, a *app, addr string) {
	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("TCG", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("bot", pterm.FgYellow.ToStyle()),
	).Render()

	info := version.Get()
	posting := "Bluesky (" + a.poster.Handle() + ")"
	if a.poster.Simulated() {
		posting = "simulated"
	}
	generator := "fallback text"
	if a.generator.Active() {
		generator = "OpenRouter"
	}
	usage := "disabled"
	if a.usage != nil {
		usage = cfg.GetDatabasePath()
	}

	_ = pterm.DefaultTable.WithData(pterm.TableData{
		{"Version", fmt.Sprintf("%s (commit %s)", info.Version, info.Short())},
		{"Listening", addr},
		{"Posting", posting},
		{"Content", generator},
		{"Usage ledger", usage},
		{"Job interval", cfg.GetPostInterval().String()},
		{"Min post spacing", cfg.GetMinPostInterval().String()},
		{"Verbosity", logger.LevelName(verbosity)},
	}).Render()

	pterm.Info.Println("Press Ctrl+C to stop")
}
