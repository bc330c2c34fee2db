// Package util holds small stateless helpers shared by the chain,
// contract-client and router packages: ABI loading, hex/gas conversion and
// private-key decryption. Grounded on the teacher repo's pkg/util helpers
// of the same names (LoadABI, LoadABIFromHardhatArtifact, Hex2Bytes,
// ExtractGasCost, Decrypt), rewritten against this module's own types.
package util

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// LoadABI reads a bare ABI JSON array (e.g. a standard ERC-20 ABI file)
// from disk and parses it.
func LoadABI(path string) (*abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read abi file %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return &parsed, nil
}

// hardhatArtifact is the subset of a Hardhat compilation artifact we need.
type hardhatArtifact struct {
	ABI json.RawMessage `json:"abi"`
}

// LoadABIFromHardhatArtifact reads a Hardhat artifact JSON file (which
// wraps the ABI under an "abi" key alongside bytecode and debug info) and
// returns the parsed ABI.
func LoadABIFromHardhatArtifact(path string) (*abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	var artifact hardhatArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(artifact.ABI)))
	if err != nil {
		return nil, fmt.Errorf("parse abi section of %s: %w", path, err)
	}
	return &parsed, nil
}
