// Package txtypes holds the small set of shared types passed between the
// contract client, tx listener and chain client packages.
package txtypes

import "math/big"

// TxKind names a fee/gas strategy (EIP-1559 Standard or Legacy). No
// package in this module reads it; the agent's transactions are built
// as EIP-1559 transactions regardless.
type TxKind int

const (
	Standard TxKind = iota
	Legacy
)

// TxReceipt mirrors the JSON-RPC transaction receipt shape. Numeric fields
// come back from the node as hex strings and are kept that way here so
// callers can choose how to parse them (ExtractGasCost in internal/util
// does the big.Int conversion).
type TxReceipt struct {
	TransactionHash   string    `json:"transactionHash"`
	BlockNumber       string    `json:"blockNumber"`
	BlockHash         string    `json:"blockHash"`
	GasUsed           string    `json:"gasUsed"`
	EffectiveGasPrice string    `json:"effectiveGasPrice"`
	Status            string    `json:"status"`
	ContractAddress   string    `json:"contractAddress,omitempty"`
	Logs              []TxLog   `json:"logs"`
}

// TxLog mirrors a single entry of a receipt's log array.
type TxLog struct {
	Address string   `json:"address"`
	Topics  []string `json:"topics"`
	Data    string   `json:"data"`
	LogIndex string  `json:"logIndex"`
}

// FeeSuggestion is the result of a fee_suggestion() call (spec.md §4.1).
type FeeSuggestion struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}
