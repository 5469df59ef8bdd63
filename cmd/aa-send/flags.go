package main

import "github.com/urfave/cli/v2"

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML configuration file",
		EnvVars: []string{"AA_CONFIG"},
	}
	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level 0-5 (0=silent, 5=trace), overrides log.level",
		Value: 3,
	}
	logFormatFlag = &cli.StringFlag{
		Name:  "log.format",
		Usage: "log output format (text, json)",
	}
	keyFlag = &cli.StringFlag{
		Name:    "key",
		Usage:   "hex private key of the account owner",
		EnvVars: []string{"AA_PRIVATE_KEY"},
	}
)

// send flags.
var (
	toFlag = &cli.StringFlag{
		Name:  "to",
		Usage: "call target",
	}
	valueFlag = &cli.StringFlag{
		Name:  "value",
		Usage: "wei sent with the call (decimal or 0x hex)",
	}
	dataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "0x-prefixed call data",
	}
	delegateFlag = &cli.BoolFlag{
		Name:  "delegate",
		Usage: "delegate-call the target instead of calling it",
	}
	callFlag = &cli.StringSliceFlag{
		Name:  "call",
		Usage: "batch entry as to[,value[,data]], repeatable",
	}
	maxFeeFlag = &cli.StringFlag{
		Name:  "max-fee-per-gas",
		Usage: "pin maxFeePerGas instead of querying the fee oracle",
	}
	maxPriorityFeeFlag = &cli.StringFlag{
		Name:  "max-priority-fee-per-gas",
		Usage: "pin maxPriorityFeePerGas instead of querying the fee oracle",
	}
	callGasFlag = &cli.StringFlag{
		Name:  "call-gas-limit",
		Usage: "pin callGasLimit instead of estimating it",
	}
)

// hash flags.
var (
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "chain id, overrides chain.id",
	}
	entryPointFlag = &cli.StringFlag{
		Name:  "entry-point",
		Usage: "entry point address, overrides account.entry_point",
	}
)

// sign flags.
var hexFlag = &cli.BoolFlag{
	Name:  "hex",
	Usage: "treat the message as 0x-prefixed hex bytes",
}
