package receiver

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/contracts"
	fsjson "github.com/compose-network/receiver-deployer/internal/infra/filesystem/json"
	"github.com/spf13/cobra"
)

var compileProjectDir string

func init() {
	CompileCMD.Flags().StringVar(&compileProjectDir, "project-dir", "", "Foundry project directory (defaults to the working directory)")
}

var CompileCMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile the receiver contract with forge",
	Long:  "Runs forge inspect for the configured contract and writes its ABI and bytecode to the artifact file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values.Deployer
		slog.Info("running contract compilation command")

		projectDir := compileProjectDir
		if projectDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
			projectDir = wd
		}

		compiler := contracts.NewCompiler(projectDir, fsjson.NewWriter())
		if err := compiler.Compile(cmd.Context(), cfg.ContractName, cfg.ArtifactFile); err != nil {
			return fmt.Errorf("contract compilation failed: %w", err)
		}

		slog.Info("contract compilation completed successfully")

		return nil
	},
}
