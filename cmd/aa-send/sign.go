package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"

	"github.com/zerodevapp/aa-sdk/signer"
)

var signCommand = &cli.Command{
	Name:      "sign",
	Usage:     "sign a personal message as the smart account",
	ArgsUsage: "<message>",
	Flags: []cli.Flag{
		hexFlag,
	},
	Action: signAction,
}

func signAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("expected exactly one message")
	}
	msg, err := messageBytes(c.Args().First(), c.Bool(hexFlag.Name))
	if err != nil {
		return err
	}
	if c.String(keyFlag.Name) == "" {
		return errNoKey
	}
	cfg, logger, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	owner, err := signer.HexToPrivateKey(c.String(keyFlag.Name))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	p, closeAll, err := connect(ctx, cfg, owner, logger, nil)
	if err != nil {
		return err
	}
	defer closeAll()

	sig, err := p.SignMessage(ctx, p.Account().Address(), msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hexutil.Encode(sig))
	return nil
}

func messageBytes(arg string, isHex bool) ([]byte, error) {
	if !isHex {
		return []byte(arg), nil
	}
	msg, err := hexutil.Decode(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid hex message: %w", err)
	}
	return msg, nil
}
