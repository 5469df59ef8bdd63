package kernel

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const accountABIJSON = `[
	{"type":"function","name":"execute","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"value","type":"uint256"},
		{"name":"data","type":"bytes"},
		{"name":"operation","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"executeBatch","stateMutability":"nonpayable","inputs":[
		{"name":"calls","type":"tuple[]","components":[
			{"name":"to","type":"address"},
			{"name":"value","type":"uint256"},
			{"name":"data","type":"bytes"}]}],"outputs":[]},
	{"type":"function","name":"getDefaultValidator","stateMutability":"view","inputs":[],
		"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getExecution","stateMutability":"view","inputs":[
		{"name":"_selector","type":"bytes4"}],
		"outputs":[{"name":"","type":"tuple","components":[
			{"name":"validUntil","type":"uint48"},
			{"name":"validAfter","type":"uint48"},
			{"name":"executor","type":"address"},
			{"name":"validator","type":"address"}]}]}
]`

const validatorABIJSON = `[
	{"type":"function","name":"enable","stateMutability":"payable","inputs":[
		{"name":"_data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"disable","stateMutability":"payable","inputs":[
		{"name":"_data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"isInitialized","stateMutability":"view","inputs":[
		{"name":"smartAccount","type":"address"}],
		"outputs":[{"name":"","type":"bool"}]}
]`

const entryPointABIJSON = `[
	{"type":"function","name":"getNonce","stateMutability":"view","inputs":[
		{"name":"sender","type":"address"},
		{"name":"key","type":"uint192"}],
		"outputs":[{"name":"nonce","type":"uint256"}]}
]`

const factoryABIJSON = `[
	{"type":"function","name":"createAccount","stateMutability":"payable","inputs":[
		{"name":"_validator","type":"address"},
		{"name":"_data","type":"bytes"},
		{"name":"_index","type":"uint256"}],
		"outputs":[{"name":"proxy","type":"address"}]}
]`

var (
	AccountABI    = mustParse(accountABIJSON)
	ValidatorABI  = mustParse(validatorABIJSON)
	EntryPointABI = mustParse(entryPointABIJSON)
	FactoryABI    = mustParse(factoryABIJSON)
)

// ExecuteSelector is the selector of execute(address,uint256,bytes,uint8).
var ExecuteSelector = selector(AccountABI, "execute")

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func selector(a abi.ABI, name string) [4]byte {
	var sel [4]byte
	copy(sel[:], a.Methods[name].ID)
	return sel
}
