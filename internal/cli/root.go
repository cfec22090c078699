package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vogtb/go-spreadsheet/internal/config"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gridcalc",
	Short:         "gridcalc: a grid of cells with formulas",
	Version:       Version,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (env: GRIDCALC_CONFIG)")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// flagOrEnv returns a flag's value when it was set explicitly, else the
// environment variable, else the flag's default
func flagOrEnv(flags *pflag.FlagSet, name, env string) string {
	flag := flags.Lookup(name)
	if flag == nil {
		return os.Getenv(env)
	}
	if flag.Changed {
		return flag.Value.String()
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return flag.DefValue
}

func Execute() error {
	return rootCmd.Execute()
}
