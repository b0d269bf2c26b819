package color

import (
	"os"

	"github.com/fatih/color"
)

// CLI roles. Reply carries no bold attribute since it is written in partial
// chunks while a response streams.
var (
	prompt  = color.New(color.FgCyan, color.Bold)
	info    = color.New(color.FgGreen)
	warning = color.New(color.FgYellow, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	reply   = color.New(color.FgHiYellow)
	success = color.New(color.FgGreen, color.Bold)
)

func Prompt(s string) string  { return prompt.Sprint(s) }
func Info(s string) string    { return info.Sprint(s) }
func Warning(s string) string { return warning.Sprint(s) }
func Failure(s string) string { return failure.Sprint(s) }
func Reply(s string) string   { return reply.Sprint(s) }
func Success(s string) string { return success.Sprint(s) }

// ConfigureFromEnv turns colors off when NO_COLOR or AGENTORANGE_NO_COLOR is set.
func ConfigureFromEnv() {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("AGENTORANGE_NO_COLOR") != "" {
		color.NoColor = true
	}
}
