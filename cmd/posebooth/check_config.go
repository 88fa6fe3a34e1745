package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/posebooth/internal/config"
)

// CheckConfigCmd implements the 'check-config' command.
type CheckConfigCmd struct{}

func (c *CheckConfigCmd) Run(root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
