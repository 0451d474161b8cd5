package listener

import (
	"fmt"
	"log/slog"
	"maps"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// LogHandler returns a Handler that writes every event to log.
func LogHandler(log *slog.Logger) Handler {
	return func(e Event) {
		attrs := make([]any, 0, 3+len(e.Fields))
		attrs = append(attrs,
			slog.String("event", e.Name),
			slog.Uint64("block", e.Block),
			slog.String("tx_hash", e.TxHash.Hex()),
		)
		for _, key := range slices.Sorted(maps.Keys(e.Fields)) {
			attrs = append(attrs, slog.String(key, FormatValue(e.Fields[key])))
		}

		log.Info("contract event received", attrs...)
	}
}

// FormatValue renders decoded ABI values the way block explorers show them.
func FormatValue(v any) string {
	switch value := v.(type) {
	case common.Address:
		return value.Hex()
	case common.Hash:
		return value.Hex()
	case [32]byte:
		return common.Hash(value).Hex()
	case []byte:
		return hexutil.Encode(value)
	case *big.Int:
		if value == nil {
			return "0"
		}
		return value.String()
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}
