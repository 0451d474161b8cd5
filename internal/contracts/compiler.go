package contracts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"github.com/compose-network/receiver-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	// commandRunner runs name with args inside dir and returns its stdout.
	commandRunner func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// Compiler builds an artifact file for a single contract with forge
	Compiler struct {
		projectDir string
		writer     filesystem.Writer
		run        commandRunner
		logger     *slog.Logger
	}
)

// NewCompiler creates a compiler for the foundry project rooted at projectDir
func NewCompiler(projectDir string, writer filesystem.Writer) *Compiler {
	return &Compiler{
		projectDir: projectDir,
		writer:     writer,
		run:        execRunner,
		logger:     logger.Named("contracts_compiler"),
	}
}

// Compile compiles contractName and writes {"abi": [...], "bytecode": "0x.."} to outputPath
func (c *Compiler) Compile(ctx context.Context, contractName, outputPath string) error {
	c.logger.
		With("project_dir", c.projectDir).
		With("contract", contractName).
		Info("starting contract compilation")

	abiJSON, bytecodeHex, err := c.compileContractRaw(ctx, contractName)
	if err != nil {
		return fmt.Errorf("failed to compile %s: %w", contractName, err)
	}

	payload := map[string]any{
		"abi":      json.RawMessage(abiJSON),
		"bytecode": bytecodeHex,
	}
	if err := c.writer.WriteJSON(outputPath, payload); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", outputPath, err)
	}

	c.logger.With("output", outputPath).Info("contract compiled successfully")

	return nil
}

// compileContractRaw returns the raw JSON ABI and the 0x-prefixed creation bytecode
func (c *Compiler) compileContractRaw(ctx context.Context, contractName string) ([]byte, string, error) {
	abiOutput, err := c.run(ctx, c.projectDir, "forge", "inspect", contractName, "abi", "--json")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get ABI for %s: %w", contractName, err)
	}

	if _, err := abi.JSON(bytes.NewReader(abiOutput)); err != nil {
		return nil, "", fmt.Errorf("failed to parse ABI for %s: %w", contractName, err)
	}

	bytecodeOutput, err := c.run(ctx, c.projectDir, "forge", "inspect", contractName, "bytecode")
	if err != nil {
		return nil, "", fmt.Errorf("failed to get bytecode for %s: %w", contractName, err)
	}

	bytecodeStr := strings.TrimSpace(string(bytecodeOutput))
	if bytecodeStr == "" {
		return nil, "", fmt.Errorf("forge returned empty bytecode for %s", contractName)
	}
	if !strings.HasPrefix(bytecodeStr, "0x") {
		bytecodeStr = "0x" + bytecodeStr
	}

	return bytes.TrimSpace(abiOutput), bytecodeStr, nil
}

func execRunner(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr

	return cmd.Output()
}
