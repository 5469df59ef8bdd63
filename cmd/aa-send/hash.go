package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/zerodevapp/aa-sdk/core/types"
)

var hashCommand = &cli.Command{
	Name:      "hash",
	Usage:     "print the hash of a JSON user operation",
	ArgsUsage: "<file|->",
	Flags: []cli.Flag{
		chainIDFlag,
		entryPointFlag,
	},
	Action: hashAction,
}

func hashAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one operation file, or - for stdin")
	}
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	chainID := cfg.Chain.ID
	if c.IsSet(chainIDFlag.Name) {
		chainID = c.Uint64(chainIDFlag.Name)
	}
	if chainID == 0 {
		return errors.New("chain id is required: set chain.id or --chain-id")
	}
	entryPoint := cfg.Account.EntryPoint
	if c.IsSet(entryPointFlag.Name) {
		s := c.String(entryPointFlag.Name)
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid entry point %q", s)
		}
		entryPoint = common.HexToAddress(s)
	}

	raw, err := readInput(c.Args().First(), c.App.Reader)
	if err != nil {
		return err
	}
	op := new(types.UserOperation)
	if err := json.Unmarshal(raw, op); err != nil {
		return fmt.Errorf("decode user operation: %w", err)
	}
	hash, err := op.Hash(entryPoint, new(big.Int).SetUint64(chainID))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash.Hex())
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
