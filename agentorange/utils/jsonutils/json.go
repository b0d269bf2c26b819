package jsonutils

import (
	"agentorange/agentorange/utils/logging"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	reFence         = regexp.MustCompile("(?s)```[A-Za-z0-9_+#.-]*[ \t]*\n(.*?)```")
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// stripInvisible removes BOMs and zero-width characters that models and
// editors like to sneak into text.
func stripInvisible(input string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\uFEFF' || r == '\u200B' || r == '\u200C' || r == '\u200D' {
			return -1
		}
		return r
	}, input))
}

// ExtractCodeBlocks returns the contents of every fenced block in a model reply,
// joined by a blank line. A reply without fences is returned trimmed.
func ExtractCodeBlocks(input string) string {
	input = stripInvisible(input)
	matches := reFence.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		return input
	}
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, strings.TrimRight(m[1], "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// ParseArrangement decodes a workflow arrangement (a JSON array of command name
// groups). Trailing commas are tolerated. Malformed input is logged and treated
// as an empty arrangement.
func ParseArrangement(raw []byte) [][]string {
	input := stripInvisible(string(raw))
	if input == "" || input == "null" {
		return nil
	}
	input = reTrailingComma.ReplaceAllString(input, "$1")

	var groups [][]string
	if err := json.Unmarshal([]byte(input), &groups); err != nil {
		logging.ErrorLogger.Warn("malformed workflow arrangement", zap.String("raw", string(raw)), zap.Error(err))
		return nil
	}
	return groups
}

// Flatten lists every name of groups in order.
func Flatten(groups [][]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
