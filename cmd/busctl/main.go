// Command busctl is a small operational CLI around pkg/bus: connect to a
// configured middleware, publish a message, or subscribe and print every
// message received on a subject pattern until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/bus/message"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/amq"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/bolt"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/ibmmq"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/kafka"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/opendds"
	_ "github.com/chris-alexander-pop/gmsec-bus/pkg/bus/transport/adapters/zeromq"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/config"
	"github.com/chris-alexander-pop/gmsec-bus/pkg/logger"
)

// cliConfig holds the process-level settings busctl itself needs, separate
// from the bus.Connection's own message.Config (mw-id, mw-server, etc.)
// which is assembled from -mw-* flags below.
type cliConfig struct {
	LogLevel  string `env:"LOG_LEVEL" env-default:"INFO"`
	LogFormat string `env:"LOG_FORMAT" env-default:"TEXT"`
}

func main() {
	var cliCfg cliConfig
	if err := config.Load(&cliCfg); err != nil {
		fmt.Fprintln(os.Stderr, "busctl: failed to load config:", err)
		os.Exit(1)
	}
	log := logger.Init(logger.Config{Level: cliCfg.LogLevel, Format: cliCfg.LogFormat})

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "pub":
		err = runPublish(log, args)
	case "sub":
		err = runSubscribe(log, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("busctl command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: busctl <pub|sub> [flags]")
}

// mwFlags declares the -mw-* flags common to pub and sub, returning the
// assembled message.Config once the flag set is parsed.
func mwFlags(fs *flag.FlagSet) func() message.Config {
	id := fs.String("mw-id", "loopback", "transport driver id (loopback, kafka, activemq, artemis, ibmmq, zeromq, opendds, bolt)")
	server := fs.String("mw-server", "default", "broker address / shared bus name")
	return func() message.Config {
		return message.Config{
			"mw-id":     *id,
			"mw-server": *server,
		}
	}
}

func runPublish(log interface{ Info(msg string, args ...any) }, args []string) error {
	fs := flag.NewFlagSet("pub", flag.ExitOnError)
	cfgFn := mwFlags(fs)
	subject := fs.String("subject", "", "subject to publish on (required)")
	body := fs.String("field", "", "single string field to attach, as NAME=VALUE")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return fmt.Errorf("busctl pub: -subject is required")
	}

	conn, err := bus.New(cfgFn())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Disconnect(ctx)

	msg := message.New(*subject, message.Publish)
	if name, value, ok := splitField(*body); ok {
		msg.AddFieldValue(name, value)
	}

	if err := conn.Publish(ctx, msg); err != nil {
		return err
	}
	log.Info("published", "subject", *subject)
	return nil
}

func runSubscribe(log interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}, args []string) error {
	fs := flag.NewFlagSet("sub", flag.ExitOnError)
	cfgFn := mwFlags(fs)
	pattern := fs.String("pattern", "", "subject pattern to subscribe to (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pattern == "" {
		return fmt.Errorf("busctl sub: -pattern is required")
	}

	conn, err := bus.New(cfgFn())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Disconnect(ctx)

	if err := conn.Subscribe(ctx, *pattern, func(msg *message.Message) {
		out, err := msg.ToJSON()
		if err != nil {
			log.Error("failed to render received message", "error", err)
			return
		}
		fmt.Println(string(out))
	}); err != nil {
		return err
	}
	if err := conn.StartAutoDispatch(); err != nil {
		return err
	}
	defer conn.StopAutoDispatch()

	log.Info("subscribed, waiting for messages", "pattern", *pattern)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}

func splitField(raw string) (name, value string, ok bool) {
	return strings.Cut(raw, "=")
}
