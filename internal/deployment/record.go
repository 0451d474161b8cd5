package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	deployedAtField = "deployedAt"

	// timestampLayout matches JavaScript's Date.toISOString, e.g. 2024-05-01T10:00:00.000Z.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// ErrSenderNotRecorded is returned when the record lacks a usable address for a network.
var ErrSenderNotRecorded = errors.New("contract address not recorded")

type (
	// Record maps network name to the contracts deployed there. Entries are kept as raw JSON
	// so that networks this tool does not touch are written back unchanged.
	Record map[string]json.RawMessage

	// Entry is a single network entry as written by this tool.
	Entry struct {
		ContractName string
		Address      common.Address
		DeployedAt   time.Time
	}
)

// NewRecord returns an empty record.
func NewRecord() Record {
	return make(Record)
}

// Networks returns the recorded network names in sorted order.
func (r Record) Networks() []string {
	return slices.Sorted(maps.Keys(r))
}

// Fields decodes the entry of network as a flat object.
func (r Record) Fields(network string) (map[string]any, bool, error) {
	raw, ok := r[network]
	if !ok {
		return nil, false, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, true, fmt.Errorf("entry for '%s' is not an object: %w", network, err)
	}

	return fields, true, nil
}

// Address returns the address stored under contractName in the entry of network.
func (r Record) Address(network, contractName string) (common.Address, error) {
	fields, ok, err := r.Fields(network)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrSenderNotRecorded, err)
	}
	if !ok || fields == nil {
		return common.Address{}, fmt.Errorf("%w: no entry for network '%s'", ErrSenderNotRecorded, network)
	}

	value, ok := fields[contractName].(string)
	if !ok || value == "" {
		return common.Address{}, fmt.Errorf("%w: network '%s' has no %s address", ErrSenderNotRecorded, network, contractName)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%w: network '%s' has invalid %s address '%s'", ErrSenderNotRecorded, network, contractName, value)
	}

	return common.HexToAddress(value), nil
}

// Put replaces the entry of network.
func (r Record) Put(network string, entry Entry) error {
	raw, err := json.Marshal(map[string]string{
		entry.ContractName: entry.Address.Hex(),
		deployedAtField:    FormatTimestamp(entry.DeployedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to encode entry for '%s': %w", network, err)
	}

	r[network] = raw

	return nil
}

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
