package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/zerodevapp/aa-sdk/config"
	"github.com/zerodevapp/aa-sdk/core/types"
	"github.com/zerodevapp/aa-sdk/kernel"
	"github.com/zerodevapp/aa-sdk/log"
	"github.com/zerodevapp/aa-sdk/metrics"
	"github.com/zerodevapp/aa-sdk/provider"
	"github.com/zerodevapp/aa-sdk/rpc"
	"github.com/zerodevapp/aa-sdk/signer"
	"github.com/zerodevapp/aa-sdk/validator"
)

var (
	errNoKey          = errors.New("no private key: set --key or AA_PRIVATE_KEY")
	errNoTarget       = errors.New("either --to or --call is required")
	errTargetAndBatch = errors.New("--to and --call are mutually exclusive")
	errDelegateBatch  = errors.New("--delegate cannot be combined with --call")
)

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "build, sign and submit a user operation",
	ArgsUsage: " ",
	Flags: []cli.Flag{
		toFlag,
		valueFlag,
		dataFlag,
		delegateFlag,
		callFlag,
		maxFeeFlag,
		maxPriorityFeeFlag,
		callGasFlag,
	},
	Action: sendAction,
}

func sendAction(c *cli.Context) error {
	action, err := buildAction(
		c.String(toFlag.Name),
		c.String(valueFlag.Name),
		c.String(dataFlag.Name),
		c.Bool(delegateFlag.Name),
		c.StringSlice(callFlag.Name),
	)
	if err != nil {
		return err
	}
	overrides, err := parseOverrides(c)
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

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, reg, logger)
		defer shutdown()
	}

	p, closeAll, err := connect(ctx, cfg, owner, logger, m)
	if err != nil {
		return err
	}
	defer closeAll()

	res, err := p.SendUserOperation(ctx, action, overrides)
	if err != nil {
		return err
	}
	logger.Info("user operation accepted",
		"hash", res.Hash,
		"sender", res.Request.Sender,
		"nonce", res.Request.Nonce,
	)
	fmt.Fprintln(c.App.Writer, res.Hash.Hex())
	return nil
}

// connect dials the node, bundlers and paymaster named by cfg and wires a
// provider for the configured Kernel account. The returned func closes
// every connection.
func connect(ctx context.Context, cfg *config.Config, owner signer.Authority, logger *log.Logger, m *metrics.Metrics) (*provider.Provider, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	node, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial node: %w", err)
	}
	closers = append(closers, node.Close)

	chainID := new(big.Int).SetUint64(cfg.Chain.ID)
	nodeChain, err := node.ChainID(ctx)
	if err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("node chain id: %w", err)
	}
	if nodeChain.Cmp(chainID) != 0 {
		closeAll()
		return nil, nil, fmt.Errorf("node is on chain %s, configured chain is %s", nodeChain, chainID)
	}

	mode, err := cfg.ValidatorMode()
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	reader := kernel.NewReader(node)
	v := validator.NewECDSAValidator(validator.Settings{
		Address:    cfg.Validator.Address,
		EntryPoint: cfg.Account.EntryPoint,
		ChainID:    chainID,
		Mode:       mode,
		Executor:   cfg.Validator.Executor,
		ValidUntil: cfg.Validator.ValidUntil,
		ValidAfter: cfg.Validator.ValidAfter,
	}, reader, owner)

	account, err := newAccount(ctx, cfg, v, reader)
	if err != nil {
		closeAll()
		return nil, nil, err
	}

	backends := make([]rpc.Bundler, 0, len(cfg.Bundler.URLs))
	for _, url := range cfg.Bundler.URLs {
		b, err := rpc.DialBundler(ctx, url)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("dial bundler %s: %w", url, err)
		}
		closers = append(closers, b.Close)
		backends = append(backends, b)
	}
	bundler, err := rpc.NewFallbackBundler(logger, backends...)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	bundler.OnError = func(method string, _ int, _ error) {
		m.ObserveBundlerFailure(method)
	}

	pcfg := provider.Config{
		ChainID:       chainID,
		Account:       account,
		Validator:     v,
		Bundler:       bundler,
		FeeOracle:     rpc.NewFeeOracle(node, rpc.DefaultFeeOracleConfig()),
		Plugins:       reader,
		MaxRetries:    cfg.Send.MaxRetries,
		RetryInterval: cfg.Send.RetryInterval,
		Logger:        logger,
		Metrics:       m,
	}
	if cfg.Paymaster.URL != "" {
		pm, err := rpc.DialPaymaster(ctx, cfg.Paymaster.URL)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("dial paymaster: %w", err)
		}
		closers = append(closers, pm.Close)
		pcfg.Sponsor = pm
	}
	return provider.New(pcfg), closeAll, nil
}

// newAccount binds the configured account. With a factory configured the
// init code deploys it with v as the default validator.
func newAccount(ctx context.Context, cfg *config.Config, v validator.Validator, reader *kernel.Reader) (*kernel.Account, error) {
	acfg := kernel.AccountConfig{
		Address:    cfg.Account.Address,
		EntryPoint: cfg.Account.EntryPoint,
		Factory:    cfg.Account.Factory,
	}
	if cfg.Account.Factory != (common.Address{}) {
		enableData, err := v.EnableData(ctx)
		if err != nil {
			return nil, err
		}
		acfg.FactoryData, err = kernel.EncodeCreateAccount(v.Address(), enableData, new(big.Int).SetUint64(cfg.Account.Index))
		if err != nil {
			return nil, err
		}
	}
	return kernel.NewAccount(acfg, reader), nil
}

// buildAction turns the send flags into a call intent.
func buildAction(to, value, data string, delegate bool, calls []string) (types.Action, error) {
	if len(calls) > 0 {
		if to != "" {
			return types.Action{}, errTargetAndBatch
		}
		if delegate {
			return types.Action{}, errDelegateBatch
		}
		batch := make([]types.Call, 0, len(calls))
		for _, s := range calls {
			call, err := parseCall(s)
			if err != nil {
				return types.Action{}, err
			}
			batch = append(batch, call)
		}
		return types.Batch(batch...), nil
	}
	if to == "" {
		return types.Action{}, errNoTarget
	}
	call, err := newCall(to, value, data)
	if err != nil {
		return types.Action{}, err
	}
	if delegate {
		if call.Value != nil && call.Value.Sign() != 0 {
			return types.Action{}, errors.New("--value is not allowed with --delegate")
		}
		return types.DelegateCall(call.To, call.Data), nil
	}
	return types.SingleCall(call.To, call.Value, call.Data), nil
}

// parseCall parses a batch entry of the form to[,value[,data]].
func parseCall(s string) (types.Call, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 3 {
		return types.Call{}, fmt.Errorf("invalid call %q: want to[,value[,data]]", s)
	}
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return newCall(parts[0], parts[1], parts[2])
}

func newCall(to, value, data string) (types.Call, error) {
	to = strings.TrimSpace(to)
	if !common.IsHexAddress(to) {
		return types.Call{}, fmt.Errorf("invalid address %q", to)
	}
	call := types.Call{To: common.HexToAddress(to), Value: new(big.Int)}
	if v := strings.TrimSpace(value); v != "" {
		n, ok := math.ParseBig256(v)
		if !ok {
			return types.Call{}, fmt.Errorf("invalid value %q", value)
		}
		call.Value = n
	}
	if d := strings.TrimSpace(data); d != "" {
		b, err := hexutil.Decode(d)
		if err != nil {
			return types.Call{}, fmt.Errorf("invalid data %q: %w", data, err)
		}
		call.Data = b
	}
	return call, nil
}

func parseOverrides(c *cli.Context) (*provider.Overrides, error) {
	var (
		o   provider.Overrides
		err error
	)
	if o.MaxFeePerGas, err = optionalBig(c, maxFeeFlag); err != nil {
		return nil, err
	}
	if o.MaxPriorityFeePerGas, err = optionalBig(c, maxPriorityFeeFlag); err != nil {
		return nil, err
	}
	if o.CallGasLimit, err = optionalBig(c, callGasFlag); err != nil {
		return nil, err
	}
	return &o, nil
}

func optionalBig(c *cli.Context, f *cli.StringFlag) (*big.Int, error) {
	s := c.String(f.Name)
	if s == "" {
		return nil, nil
	}
	n, ok := math.ParseBig256(s)
	if !ok {
		return nil, fmt.Errorf("invalid --%s %q", f.Name, s)
	}
	return n, nil
}

// serveMetrics exposes reg on addr until the returned func is called.
func serveMetrics(addr string, reg *prometheus.Registry, logger *log.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
