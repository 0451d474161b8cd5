package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/deployment"
	"github.com/compose-network/receiver-deployer/internal/evm"
	fsjson "github.com/compose-network/receiver-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/receiver-deployer/internal/output"
	"github.com/spf13/cobra"
)

func init() {
	if err := bindDeployFlags(CMD.Flags()); err != nil {
		panic(err)
	}
}

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the message receiver and register the source chain sender",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values.Deployer
		slog.Info("starting deploy command. Validating config",
			slog.String("target", string(cfg.Target.Network)),
			slog.String("source", string(cfg.Source.Network)))

		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reader := fsjson.NewReader()
		writer := fsjson.NewWriter()

		var generator outputGenerator
		if cfg.OutputFile != "" {
			generator = NewOutputGenerator(output.NewGenerator(cfg.OutputFile, writer))
		}

		service := NewService(
			cfg,
			reader,
			deployment.NewStore(cfg.RecordsFile, reader, writer),
			NewEVMConnector(evm.Options{GasLimit: cfg.GasLimit, TxTimeout: cfg.TxTimeout}, cfg.PollInterval),
			generator,
		)

		result, err := service.Deploy(ctx)
		if err != nil {
			return fmt.Errorf("receiver deployment failed: %w", err)
		}
		defer result.Close()

		PrintSummary(cmd.OutOrStdout(), result)

		if !cfg.Watch || result.Subscription == nil {
			slog.Info("deployment completed successfully")
			return nil
		}

		slog.Info("deployment completed successfully. Watching contract events until interrupted")
		watch(ctx, result.Subscription)

		return nil
	},
}

func watch(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutting down event listeners")
			return
		case err := <-sub.Err():
			slog.With("err", err.Error()).Warn("event listener reported an error")
		}
	}
}
