package configs

import (
	"agentorange/agentorange/sources/psql/models"
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed commands.yaml
var builtinCommands []byte

type commandSeed struct {
	Name             string   `yaml:"name"`
	ShortDescription string   `yaml:"short_description"`
	Prompt           string   `yaml:"prompt"`
	Role             string   `yaml:"role"`
	Host             string   `yaml:"host"`
	Model            string   `yaml:"model"`
	Temperature      *float64 `yaml:"temperature"`
	Type             string   `yaml:"type"`
	Dependencies     []string `yaml:"dependencies"`
}

type commandFile struct {
	Commands []commandSeed `yaml:"commands"`
}

// BuiltinCommands returns the command set seeded on first start.
func BuiltinCommands() ([]models.ChatCommand, error) {
	return ParseCommands(builtinCommands)
}

// ParseCommands decodes a YAML command list. Empty host/model stay nil so
// they resolve through the user defaults at run time.
func ParseCommands(data []byte) ([]models.ChatCommand, error) {
	var file commandFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse commands: %w", err)
	}
	out := make([]models.ChatCommand, 0, len(file.Commands))
	for i, seed := range file.Commands {
		if strings.TrimSpace(seed.Name) == "" || strings.TrimSpace(seed.Prompt) == "" {
			return nil, fmt.Errorf("parse commands: entry %d needs a name and a prompt", i)
		}
		cmd := models.ChatCommand{
			Name:             seed.Name,
			Timestamp:        models.NextTimestamp(),
			Prompt:           seed.Prompt,
			ShortDescription: seed.ShortDescription,
			Role:             optional(seed.Role),
			Host:             optional(seed.Host),
			Model:            optional(seed.Model),
			Temperature:      FallbackTemperature,
			Type:             models.AgentTypeCoder,
			DependencyIDs:    seed.Dependencies,
		}
		if seed.Temperature != nil {
			cmd.Temperature = *seed.Temperature
		}
		if models.AgentType(seed.Type) == models.AgentTypeReviewer {
			cmd.Type = models.AgentTypeReviewer
		}
		out = append(out, cmd)
	}
	return out, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
