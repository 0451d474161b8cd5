package evm

import "github.com/ethereum/go-ethereum/common"

// PadAddress left-pads addr to 32 bytes, the layout wormhole uses for foreign addresses.
func PadAddress(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[common.HashLength-common.AddressLength:], addr.Bytes())
	return out
}
