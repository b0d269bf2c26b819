package configs

import (
	"agentorange/agentorange/sources/psql/models"
	"agentorange/agentorange/utils/logging"
	"strings"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
)

const (
	FallbackCustomHost  = "http://localhost:1234"
	FallbackCustomModel = "local-model"
	FallbackCodeTitle   = "Generated"
	FallbackTemperature = 0.7
)

// Defaults are the user preferences a command falls back to when it leaves
// host or model empty. They are passed into the engine explicitly.
type Defaults struct {
	CustomHost        string
	CustomModel       string
	CustomTemperature float64
	CodeTitle         string
	MaxTokens         int
	ClaudeMaxTokens   int
}

func FallbackDefaults() Defaults {
	return Defaults{
		CustomHost:        FallbackCustomHost,
		CustomModel:       FallbackCustomModel,
		CustomTemperature: FallbackTemperature,
		CodeTitle:         FallbackCodeTitle,
		MaxTokens:         4096,
		ClaudeMaxTokens:   4096,
	}
}

// LoadDefaults reads the properties file at path. A missing or unreadable file
// is logged and yields the fallback defaults.
func LoadDefaults(path string) Defaults {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		logging.AppLogger.Warn("defaults load error, using fallbacks", zap.String("path", path), zap.Error(err))
		return FallbackDefaults()
	}
	return fromProperties(props)
}

func LoadDefaultsString(s string) (Defaults, error) {
	props, err := properties.LoadString(s)
	if err != nil {
		return Defaults{}, err
	}
	return fromProperties(props), nil
}

func fromProperties(props *properties.Properties) Defaults {
	fb := FallbackDefaults()
	return Defaults{
		CustomHost:        strings.TrimSpace(props.GetString("custom_host", fb.CustomHost)),
		CustomModel:       strings.TrimSpace(props.GetString("custom_model", fb.CustomModel)),
		CustomTemperature: props.GetFloat64("custom_temperature", fb.CustomTemperature),
		CodeTitle:         strings.TrimSpace(props.GetString("code_title", fb.CodeTitle)),
		MaxTokens:         props.GetInt("max_tokens", fb.MaxTokens),
		ClaudeMaxTokens:   props.GetInt("claude_max_tokens", fb.ClaudeMaxTokens),
	}
}

// ResolvedCommand is a command with host and model filled in.
type ResolvedCommand struct {
	Host        string
	Model       string
	Temperature float64
	Role        string
}

// Resolve fills host and model: explicit command field, then user default,
// then the fallback constant.
func (d Defaults) Resolve(cmd models.ChatCommand) ResolvedCommand {
	return ResolvedCommand{
		Host:        firstNonEmpty(deref(cmd.Host), d.CustomHost, FallbackCustomHost),
		Model:       firstNonEmpty(deref(cmd.Model), d.CustomModel, FallbackCustomModel),
		Temperature: cmd.Temperature,
		Role:        deref(cmd.Role),
	}
}

// Title is the title given to generated code snippets.
func (d Defaults) Title() string {
	return firstNonEmpty(d.CodeTitle, FallbackCodeTitle)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
