package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dreamware/failover/internal/config"
)

const appName = "failover"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v       *viper.Viper
	cfg     *config.AppConfig
	logger  *zap.SugaredLogger
	cfgFile string
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           appName,
		Short:         "Failover TCP connection selector",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (yaml)")
	config.MustViperFlags(a.v, root.PersistentFlags())

	root.AddCommand(
		newConnectCommand(a),
		newEchoCommand(a),
		newStatusCommand(a),
	)
	return root
}

// init reads in config file and ENV variables if set.
func (a *app) init() error {
	if err := config.SetupViper(a.v, a.cfgFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger.Sugar().Named(appName)
	if a.cfgFile != "" {
		a.logger.Infow("using config file", "file", a.v.ConfigFileUsed())
	}

	a.cfg = cfg
	return nil
}
