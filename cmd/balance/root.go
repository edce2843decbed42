package main

import (
	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"balance/internal/cli"
	"balance/internal/config"
)

var (
	envFile    string
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "balance",
	Short: "Personal finance tracker",
	Long: `balance keeps a running list of income and expense transactions and
shows the total income, total expenses and balance.

The ledger lives for one session only: a browser session for "serve",
the process lifetime for "shell".`,
	SilenceUsage: true,
}

func init() {
	cc.Init(&cc.Config{
		RootCmd:         rootCmd,
		Headings:        cc.HiCyan + cc.Bold + cc.Underline,
		Commands:        cc.HiYellow + cc.Bold,
		Example:         cc.Italic,
		ExecName:        cc.Bold,
		Flags:           cc.Bold,
		NoExtraNewlines: true,
	})
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment.")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML settings file; environment variables take precedence.")
}

// loadConfig layers the environment over the dotenv file over the TOML
// file, then validates.
func loadConfig() (*config.Config, error) {
	if err := cli.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if configFile != "" {
		if err := cli.LoadConfigFile(configFile); err != nil {
			return nil, err
		}
	}
	return cli.LoadAndValidateConfig()
}
