// Command tstorage-mockd runs the reference TStorage mock server: an
// in-memory store speaking the same wire protocol as the production
// service, with optional traffic logging and a live inspector TUI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/atendeindustries/tstorage-clients/broker"
	"github.com/atendeindustries/tstorage-clients/mockserver"
	"github.com/atendeindustries/tstorage-clients/tui"
)

var version = "dev"

// verbosity counts repeated -v/-verbose flags, the teacher's counted
// flag.Value pattern.
type verbosity int

func (v *verbosity) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verbosity) Set(string) error {
	*v++
	return nil
}
func (v *verbosity) IsBoolFlag() bool { return true } // allows bare -v, -v -v, ...

func main() {
	fs := flag.NewFlagSet("tstorage-mockd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "tstorage-mockd — reference TStorage mock server\n\nUsage:\n  tstorage-mockd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var verbose verbosity
	fs.Var(&verbose, "v", "increase verbosity (repeatable)")
	fs.Var(&verbose, "verbose", "alias of -v")
	logPath := fs.String("l", "", "append timestamped, hex-dumped traffic to PATH")
	fs.StringVar(logPath, "log", "", "alias of -l")
	listen := fs.String("listen", mockserver.DefaultAddr, "listen address")
	showTUI := fs.Bool("tui", false, "launch the live inspector TUI")
	tlsCert := fs.String("tls-cert", "", "PEM certificate path (enables TLS with -tls-key)")
	tlsKey := fs.String("tls-key", "", "PEM key path (enables TLS with -tls-cert)")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("tstorage-mockd %s\n", version)
		return
	}

	if err := run(*listen, *logPath, int(verbose), *showTUI, *tlsCert, *tlsKey); err != nil {
		log.Fatal(err)
	}
}

func run(listen, logPath string, verbose int, showTUI bool, tlsCert, tlsKey string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := mockserver.New()
	srv.Broker = broker.New()

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("tstorage-mockd: open log %s: %w", logPath, err)
		}
		defer f.Close()
		srv.Logger = f
		log.Printf("traffic logging enabled: %s", logPath)
	}

	var ln net.Listener
	var err error
	if tlsCert != "" && tlsKey != "" {
		ln, err = listenTLS(listen, tlsCert, tlsKey)
		if err != nil {
			return fmt.Errorf("tstorage-mockd: %w", err)
		}
		log.Printf("TLS enabled (cert=%s)", tlsCert)
	} else {
		ln, err = net.Listen("tcp", listen)
		if err != nil {
			return fmt.Errorf("tstorage-mockd: listen %s: %w", listen, err)
		}
	}

	if showTUI {
		sub, unsub := srv.Broker.Subscribe()
		defer unsub()
		go func() {
			if err := tui.Run(ctx, sub); err != nil {
				log.Printf("tui: %v", err)
			}
		}()
	} else if verbose > 0 {
		sub, unsub := srv.Broker.Subscribe()
		defer unsub()
		go logEvents(ctx, sub, verbose)
	}

	log.Printf("listening on %s", ln.Addr())
	if err := srv.Serve(ctx, ln); err != nil {
		return fmt.Errorf("tstorage-mockd: serve: %w", err)
	}
	return nil
}

func logEvents(ctx context.Context, events <-chan broker.Event, verbose int) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if verbose >= 2 {
				log.Printf("%s conn=%s %s status=%d acq=%d records=%d dur=%s",
					ev.Verb, ev.ConnID, ev.ID, ev.Status, ev.Acq, ev.RecordCount, ev.Duration)
			} else {
				log.Printf("%s conn=%s status=%d records=%d", ev.Verb, ev.ConnID, ev.Status, ev.RecordCount)
			}
		}
	}
}
