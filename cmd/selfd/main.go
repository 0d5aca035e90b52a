// selfd is the chain node daemon.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/SELF-HQ/self-chain-core/core/types"
	"github.com/SELF-HQ/self-chain-core/crypto/ed25519"
	"github.com/SELF-HQ/self-chain-core/node"
)

const (
	clientIdentifier = "selfd"
	version          = "0.1.0"
	keyFileName      = "node.key"
	configFileName   = "config.toml"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "data directory for the database and keys",
	}
	roleFlag = &cli.StringFlag{
		Name:  "role",
		Usage: "node role: validator, builder or coordinator",
	}
	idFlag = &cli.StringFlag{
		Name:  "id",
		Usage: "node identity, defaults to a generated UUID",
	}
	chainIDFlag = &cli.StringFlag{
		Name:  "chain-id",
		Usage: "chain identifier",
		Value: "self-chain-mainnet",
	}
	verbosityFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	}
)

func main() {
	app := &cli.App{
		Name:    clientIdentifier,
		Usage:   "SELF chain consensus node",
		Version: version,
		Flags: []cli.Flag{
			configFlag, dataDirFlag, roleFlag, idFlag, chainIDFlag, verbosityFlag,
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "write a default configuration file into the data directory",
				Flags:  []cli.Flag{dataDirFlag, chainIDFlag, roleFlag},
				Action: initConfig,
			},
			{
				Name:   "run",
				Usage:  "start the node",
				Flags:  []cli.Flag{configFlag, dataDirFlag, roleFlag, idFlag, chainIDFlag, verbosityFlag},
				Action: runNode,
			},
		},
		Action: runNode,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}

func initConfig(ctx *cli.Context) error {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return fmt.Errorf("init requires --%s", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}

	cfg := node.DefaultConfig(ctx.String(chainIDFlag.Name))
	cfg.DataDir = dataDir
	if role := ctx.String(roleFlag.Name); role != "" {
		cfg.Role = role
	}

	path := filepath.Join(dataDir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists at %s", path)
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := toml.NewEncoder(out).Encode(cfg); err != nil {
		return err
	}
	fmt.Println(color.GreenString("Wrote %s", path))
	return nil
}

func loadConfig(ctx *cli.Context) (*node.Config, error) {
	cfg := node.DefaultConfig(ctx.String(chainIDFlag.Name))

	if path := ctx.String(configFlag.Name); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if dataDir := ctx.String(dataDirFlag.Name); dataDir != "" {
		cfg.DataDir = dataDir
	}
	if role := ctx.String(roleFlag.Name); role != "" {
		cfg.Role = role
	}
	if id := ctx.String(idFlag.Name); id != "" {
		cfg.ID = id
	}
	return cfg, cfg.Validate()
}

// loadOrCreateKey reads the node's Ed25519 seed from the data directory,
// generating one on first run. Without a data directory the key is
// ephemeral.
func loadOrCreateKey(dataDir string) (ed25519.PrivateKey, error) {
	if dataDir == "" {
		_, priv, err := ed25519.GenerateKey()
		return priv, err
	}
	path := filepath.Join(dataDir, keyFileName)
	if raw, err := os.ReadFile(path); err == nil {
		seed, err := hex.DecodeString(string(raw))
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("malformed key file %s", path)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	_, priv, err := ed25519.GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(priv.Seed())), 0o600); err != nil {
		return nil, err
	}
	return priv, nil
}

func runNode(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	key, err := loadOrCreateKey(cfg.DataDir)
	if err != nil {
		return err
	}

	logCfg := zap.NewProductionConfig()
	if ctx.Bool(verbosityFlag.Name) {
		logCfg = zap.NewDevelopmentConfig()
	}
	logger, err := logCfg.Build()
	if err != nil {
		return err
	}
	defer logger.Sync()

	// A single-process committee of this node. Committee membership from a
	// staking registry arrives with the networking layer.
	self := &types.Validator{
		ID:        cfg.ID,
		PublicKey: ed25519.PublicFromPrivate(key),
		Bond:      node.DefaultSelfBond(),
		Eligible:  true,
	}
	committee := types.NewCommittee([]*types.Validator{self})
	genesis := types.GenesisHeader(cfg.Consensus.ChainID)

	n, err := node.New(cfg, key, committee, genesis, logger.Sugar())
	if err != nil {
		return err
	}
	defer n.Close()

	color.Cyan("%s %s", clientIdentifier, version)
	fmt.Printf("node %s role %s chain %s\n",
		color.YellowString(cfg.ID), color.YellowString(cfg.Role), cfg.Consensus.ChainID)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = n.Run(runCtx)
	if err == context.Canceled {
		return nil
	}
	return err
}
