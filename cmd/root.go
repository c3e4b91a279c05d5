package cmd

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/findy-network/findy-courier/agent/utils"
	"github.com/lainio/err2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "FCOURIER"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: utils.Version,
	Use:     "findy-courier",
	Short:   "Findy courier, the DIDComm message transport runtime",
	Long: `
Findy courier moves DIDComm messages between agents: it listens, unpacks,
dispatches and delivers with retry. Protocol logic and wallets plug in.
	`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		parseLoggingFlags(rootFlags.logging)
		handleViperFlags(cmd)
	},
}

// Execute root
func Execute() {
	err2.SetLogTracer(os.Stderr)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootFlags are the common flags
type RootFlags struct {
	cfgFile string
	logging string
}

var rootFlags = RootFlags{}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootFlags.cfgFile, "config", "", "configuration file path")
	flags.StringVar(&rootFlags.logging, "logging", "-logtostderr=true -v=0",
		"logging startup arguments")

	try0(viper.BindEnv("config", envPrefix+"_CONFIG"))
	try0(viper.BindEnv("logging", envPrefix+"_LOGGING"))
}

func initConfig() {
	if rootFlags.cfgFile == "" {
		rootFlags.cfgFile = viper.GetString("config")
	}
	if rootFlags.cfgFile != "" {
		viper.SetConfigFile(rootFlags.cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Println("cannot read config:", err)
			os.Exit(1)
		}
	}
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()
}

// handleViperFlags copies env/config values into flags that weren't given
// on the command line.
func handleViperFlags(cmd *cobra.Command) {
	checkFlags(cmd.Flags())
	checkFlags(cmd.PersistentFlags())
}

func checkFlags(flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed && viper.IsSet(f.Name) {
			try0(flags.Set(f.Name, viper.GetString(f.Name)))
		}
	})
}

// parseLoggingFlags feeds the glog startup arguments to the flag package.
func parseLoggingFlags(args string) {
	// glog uses the global flag set
	defer func() {
		_ = flag.CommandLine.Parse([]string{})
	}()
	all := strings.Split(args, " ")
	for _, arg := range all {
		kv := strings.SplitN(strings.TrimPrefix(arg, "-"), "=", 2)
		if len(kv) == 2 {
			_ = flag.Set(kv[0], kv[1])
		}
	}
}

func try0(err error) {
	if err != nil {
		log.Println(err)
	}
}
