// Command kcfsmount mounts a kcfs page cache filesystem: it serves a
// FUSE mountpoint backed by a storage root, writing back dirty pages
// through a configured shard layout until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kubecachefs/kcfs/internal/fsbridge"
	"github.com/kubecachefs/kcfs/pkg/cache"
)

func main() {
	var (
		mountpoint string
		storage    string
		configPath string
		foreground bool
		verbose    bool
	)

	pflag.StringVarP(&mountpoint, "mountpoint", "m", "", "the mountpoint of the filesystem")
	pflag.StringVarP(&storage, "storage", "s", "", "the directory used as persistent storage on a slower device")
	pflag.StringVarP(&configPath, "config", "c", "", "path to the cache configuration document")
	pflag.BoolVarP(&foreground, "foreground", "f", false, "run in the foreground (kcfsmount never daemonizes; the value is only logged)")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pflag.Parse()

	log, err := newLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kcfsmount: logger init: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(mountpoint, storage, configPath, foreground, log); err != nil {
		log.Error("kcfsmount exiting with error", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

func run(mountpoint, storage, configPath string, foreground bool, log *zap.Logger) error {
	if mountpoint == "" || storage == "" || configPath == "" {
		return fmt.Errorf("kcfsmount: --mountpoint, --storage and --config are all required")
	}

	cfg, err := cache.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	engine, err := cache.New(cfg, nil, log)
	if err != nil {
		return fmt.Errorf("starting cache engine: %w", err)
	}
	defer engine.Close()

	conn, err := fuse.Mount(mountpoint,
		fuse.FSName("kcfs"),
		fuse.Subtype("kcfs"),
		fuse.AllowOther(),
	)
	if err != nil {
		return fmt.Errorf("mounting %s: %w", mountpoint, err)
	}
	defer conn.Close()

	filesystem := &fsbridge.FS{Root: storage, Engine: engine, Log: log}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- fusefs.Serve(conn, filesystem)
	}()

	select {
	case <-conn.Ready:
		if err := conn.MountError; err != nil {
			return fmt.Errorf("mount error: %w", err)
		}
	case err := <-serveErr:
		return fmt.Errorf("serve exited before mount was ready: %w", err)
	}

	log.Info("kcfs mounted",
		zap.String("mountpoint", mountpoint),
		zap.String("storage", storage),
		zap.Bool("foreground", foreground),
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info("received signal, unmounting", zap.String("signal", s.String()))
	case err := <-serveErr:
		if err != nil {
			log.Error("fuse serve exited", zap.Error(err))
		}
	}

	if err := fuse.Unmount(mountpoint); err != nil {
		log.Warn("unmount failed", zap.Error(err))
	}
	return nil
}
