package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/SeedCredits/raiblocks/cmd/internal/passphrase"
	"github.com/SeedCredits/raiblocks/config"
	"github.com/SeedCredits/raiblocks/node"
	"github.com/SeedCredits/raiblocks/observability/logging"
	"github.com/SeedCredits/raiblocks/rpc"
	"github.com/SeedCredits/raiblocks/storage"
	"github.com/SeedCredits/raiblocks/types"
)

const walletPassEnv = "RAI_WALLET_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	unlockWallet := flag.String("unlock", "", "Wallet id (hex) to unlock at startup")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logFile := cfg.Node.LogFile
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(cfg.Node.DataDir, logFile)
	}
	logger := logging.Setup("raind", logFile, cfg.Node.LogMaxSizeMB)

	db, err := storage.NewLevelDB(cfg.Node.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	n, err := node.NewNode(cfg, db, logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}

	if *unlockWallet != "" {
		if err := unlock(n, *unlockWallet); err != nil {
			logger.Error("Failed to unlock wallet", slog.Any("error", err))
			os.Exit(1)
		}
		// pick up sends that arrived while the daemon was down
		n.Wallets.SearchAll()
	}

	server := rpc.NewServer(cfg.RPC, n, logger)
	if err := server.Start(); err != nil {
		logger.Error("Failed to start RPC", slog.Any("error", err))
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	server.Stop()
	n.Stop()
}

func unlock(n *node.Node, walletText string) error {
	var id types.WalletID
	if err := id.DecodeHex(walletText); err != nil {
		return fmt.Errorf("bad wallet id %q", walletText)
	}
	w, ok := n.Wallets.Open(id)
	if !ok {
		return fmt.Errorf("wallet %s not found", walletText)
	}
	pass, err := passphrase.NewSource(walletPassEnv).Get()
	if err != nil {
		return err
	}
	if !w.EnterPassword(pass) {
		return fmt.Errorf("invalid passphrase for wallet %s", walletText)
	}
	return nil
}
