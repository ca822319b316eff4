package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved endpoint
func PrintBanner(config *Config, logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetBold(true)

	b.PrintTopLine()
	b.PrintCenteredText("Amazon Client")
	b.PrintCenteredText(fmt.Sprintf("version %s", GetVersion()))
	b.PrintSeparatorLine()
	b.PrintKeyValue("Server", config.Connection.Address, 12)
	b.PrintKeyValue("Environment", config.Environment, 12)
	b.PrintBottomLine()

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("address", config.Connection.Address).
		Msg("Worker starting")
}
