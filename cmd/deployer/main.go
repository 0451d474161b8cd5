package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/logger"
	"github.com/compose-network/receiver-deployer/internal/receiver"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName       = "receiver-deployer"
	privateKeyEnv = "PRIVATE_KEY"
)

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "CLI for deploying the cross-chain message receiver",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, the environment may already carry the key
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Join(err, errors.New("error reading .env file"))
		}

		if err := configs.LoadDefaults(viper.GetViper()); err != nil {
			return err
		}
		if err := viper.BindEnv("deployer.private-key", privateKeyEnv); err != nil {
			return err
		}

		viper.SetConfigName("config")
		viper.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(execPath))
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")

		configFile := ""
		if err := viper.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return errors.Join(err, errors.New("error reading config file"))
			}
		} else {
			configFile = viper.ConfigFileUsed()
		}

		if err := viper.Unmarshal(&configs.Values); err != nil {
			return errors.Join(err, errors.New("unable to decode application config"))
		}

		if err := configs.Values.Log.Validate(); err != nil {
			return err
		}
		level, err := logger.ParseLevel(configs.Values.Log.Level)
		if err != nil {
			return err
		}
		logger.Initialize(level, configs.Values.Log.Format)

		if configFile != "" {
			slog.With("config_file", configFile).Debug("config file loaded")
		} else {
			slog.Debug("no config file found, relying on defaults, env and flags")
		}

		return nil
	},
}

func main() {
	if err := receiver.BindPersistentFlags(rootCmd.PersistentFlags()); err != nil {
		slog.With("err", err.Error()).Error("failed to bind flags")
		os.Exit(1)
	}

	rootCmd.AddCommand(receiver.CMD)
	rootCmd.AddCommand(receiver.CompileCMD)
	rootCmd.AddCommand(receiver.RecordsCMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
