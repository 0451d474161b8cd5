package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type (
	// Artifact is a compiled contract as produced by forge or hardhat.
	Artifact struct {
		Name     string
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
	}

	// artifactFile is the on-disk layout. Bytecode is either a hex string or, for forge
	// output, an object carrying the hex string in "object".
	artifactFile struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode bytecodeField   `json:"bytecode"`
	}

	bytecodeField string
)

func (b *bytecodeField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*b = bytecodeField(obj.Object)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = bytecodeField(s)
	return nil
}

// LoadArtifact reads the artifact at path. Beyond JSON well-formedness it only requires the
// abi to parse and the bytecode to be non-empty hex.
func LoadArtifact(reader filesystem.Reader, path, name string) (Artifact, error) {
	var file artifactFile
	if err := reader.ReadJSON(path, &file); err != nil {
		return Artifact{}, fmt.Errorf("failed to load artifact '%s': %w", path, err)
	}

	return parseArtifact(name, file)
}

func parseArtifact(name string, file artifactFile) (Artifact, error) {
	if len(file.ABI) == 0 {
		return Artifact{}, fmt.Errorf("artifact for %s has no abi", name)
	}

	parsedABI, err := abi.JSON(bytes.NewReader(file.ABI))
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to parse ABI for %s: %w", name, err)
	}

	bytecodeHex := strings.TrimSpace(string(file.Bytecode))
	if bytecodeHex == "" || bytecodeHex == "0x" {
		return Artifact{}, fmt.Errorf("artifact for %s has no bytecode", name)
	}
	if !strings.HasPrefix(bytecodeHex, "0x") {
		bytecodeHex = "0x" + bytecodeHex
	}

	bytecode, err := hexutil.Decode(bytecodeHex)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to decode bytecode for %s: %w", name, err)
	}

	return Artifact{
		Name:     name,
		ABI:      parsedABI,
		RawABI:   string(file.ABI),
		Bytecode: bytecode,
	}, nil
}

// HasEvent reports whether the artifact's ABI declares the named event.
func (a Artifact) HasEvent(name string) bool {
	_, ok := a.ABI.Events[name]
	return ok
}

// CompactABI returns the ABI JSON without insignificant whitespace.
func (a Artifact) CompactABI() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(a.RawABI)); err != nil {
		return a.RawABI
	}
	return buf.String()
}

var errNoMethod = errors.New("method not declared in ABI")

// RequireMethod fails when the ABI does not declare method.
func (a Artifact) RequireMethod(method string) error {
	if _, ok := a.ABI.Methods[method]; !ok {
		return fmt.Errorf("%s.%s: %w", a.Name, method, errNoMethod)
	}
	return nil
}
