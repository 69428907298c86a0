package cmd

import (
	"github.com/Iron-Ham/haunt/internal/cmd/config"
	appconfig "github.com/Iron-Ham/haunt/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "haunt",
	Short: "A desktop companion that shows up when you step away",
	Long: `haunt runs a small companion that peeks in when you go idle, reacts to
what is playing, comments on your screen and leaves when you come back.

Start the daemon with 'haunt run', then talk to it with commands such as
'haunt summon' or 'haunt status'. 'haunt console' runs a self-contained
simulator in the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/haunt/config.yaml)")
	rootCmd.PersistentFlags().String("addr", "", "control API address (default from control.addr)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("control.addr", rootCmd.PersistentFlags().Lookup("addr"))

	config.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(appconfig.EnvPrefix)
	// e.g. HAUNT_TRIGGER_IDLE_THRESHOLD for trigger.idle_threshold
	viper.SetEnvKeyReplacer(appconfig.EnvKeyReplacer())

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
