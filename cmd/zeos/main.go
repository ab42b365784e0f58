// Badge runtime daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"
	"github.com/temoto/zeos/internal/config"
	"github.com/temoto/zeos/internal/kernel"
	"github.com/temoto/zeos/log2"
)

var BuildVersion string = "unknown" // set by ldflags -X

var log = log2.NewStderr(log2.LDebug)

func main() {
	cmdline := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagConfig := cmdline.StringP("config", "c", config.DefaultPath, "")
	flagDebug := cmdline.Bool("debug", false, "debug logging")
	flagVersion := cmdline.Bool("version", false, "print build version and exit")
	_ = cmdline.Parse(os.Args[1:])

	if *flagVersion {
		os.Stdout.WriteString(BuildVersion + "\n")
		return
	}

	if sdnotify("start") {
		// under systemd, journal has timestamps
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.Infof("zeos version=%s", BuildVersion)

	cfg := config.MustRead(log, config.NewOsFullReader(), *flagConfig)
	if !(*flagDebug || cfg.Kernel.Debug) {
		log.SetLevel(log2.LInfo)
	}

	err := run(cfg)
	switch {
	case err == nil:
		log.Infof("exit")
	case errors.Cause(err) == kernel.ErrReload:
		reexec()
	default:
		log.Fatal(errors.ErrorStack(err))
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := kernel.New(log, cfg)
	k.BuildVersion = BuildVersion
	if err := k.Init(ctx); err != nil {
		_ = k.Close()
		return errors.Annotate(err, "init")
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigch
		log.Infof("signal=%v stopping", s)
		k.Stop()
	}()
	defer signal.Stop(sigch)

	sdnotify(daemon.SdNotifyReady)
	runErr := k.Run(ctx)
	sdnotify(daemon.SdNotifyStopping)
	if err := k.Close(); err != nil {
		log.Errorf("close: %s", errors.ErrorStack(err))
	}
	return runErr
}

// reexec replaces process image with fresh copy of itself.
func reexec() {
	exe, err := os.Executable()
	if err != nil {
		log.Fatal(errors.ErrorStack(errors.Annotate(err, "reload")))
	}
	log.Infof("reload exec=%s", exe)
	err = syscall.Exec(exe, os.Args, os.Environ())
	log.Fatal(errors.ErrorStack(errors.Annotate(err, "reload exec")))
}

func sdnotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
