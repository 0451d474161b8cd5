package receiver

import (
	"context"
	"fmt"
	"io"

	"github.com/compose-network/receiver-deployer/internal/deployment"
	"github.com/compose-network/receiver-deployer/internal/output"
	"github.com/fatih/color"
)

type (
	modelWriter interface {
		Write(model *output.Model) error
	}

	// OutputGenerator persists the YAML summary of a run
	OutputGenerator struct {
		writer modelWriter
	}
)

func NewOutputGenerator(writer modelWriter) *OutputGenerator {
	return &OutputGenerator{writer: writer}
}

func (g *OutputGenerator) Generate(_ context.Context, result *Result) error {
	return g.writer.Write(BuildModel(result))
}

// BuildModel converts a run result into the output file model
func BuildModel(result *Result) *output.Model {
	return &output.Model{
		Network: result.Network,
		Chain: output.Chain{
			Description:     result.Chain.Description,
			RPCURL:          result.Chain.RPC,
			WormholeRelayer: result.Chain.WormholeRelayer,
		},
		Contract: output.Contract{
			Name:       result.Artifact.Name,
			Address:    result.Address.Hex(),
			Deployer:   result.Deployer.Hex(),
			DeployTx:   result.DeployTx.Hex(),
			DeployedAt: deployment.FormatTimestamp(result.DeployedAt),
			ABI:        output.SingleQuotedString(result.Artifact.CompactABI()),
		},
		Registered: output.RegisteredSender{
			ChainID: result.SourceChainID,
			Address: result.Sender.Hex(),
			TxHash:  result.RegistrationTx.Hex(),
		},
	}
}

// PrintSummary writes the human readable outcome of a run to w
func PrintSummary(w io.Writer, result *Result) {
	ok := color.New(color.FgGreen, color.Bold).SprintFunc()
	label := color.New(color.FgCyan).SprintFunc()

	fmt.Fprintf(w, "%s %s deployed to %s\n", ok("✔"), result.Artifact.Name, result.Address.Hex())
	fmt.Fprintf(w, "  %s %s (%s)\n", label("network:"), result.Network, result.Chain.Description)
	fmt.Fprintf(w, "  %s %s\n", label("deploy tx:"), result.DeployTx.Hex())
	fmt.Fprintf(w, "  %s %s for chain %d (tx %s)\n", label("registered sender:"), result.Sender.Hex(), result.SourceChainID, result.RegistrationTx.Hex())
	fmt.Fprintf(w, "  %s %s\n", label("deployed at:"), deployment.FormatTimestamp(result.DeployedAt))
}
