package main

import (
	"os"

	"github.com/spf13/cobra"

	"indicadores/dashboard-go/internal/config"
)

var (
	configFile string
	envFiles   []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-go",
		Short: "Indicadores Santa Fe dashboard",
		Long: `dashboard-go serves the Santa Fe activity dashboard: indicators and tables
built from the activities spreadsheet, charts, and the shared map with its overlays.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file layered over the defaults")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{"credentials/config.env", ".env"}, "dotenv files loaded into the environment when present")

	rootCmd.AddCommand(newServeCmd(), newFetchCmd(), newKMLCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(config.LoadOptions{File: configFile, DotEnv: envFiles})
}
