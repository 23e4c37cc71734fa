// Command forge runs a standalone instance of the server core,
// wiring the bundled sample plugins (recover, access log, secure
// headers, CORS, gzip, static files) around whatever config file is
// given on the command line.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgehttp/forge"
	"github.com/forgehttp/forge/plugins"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := forge.DefaultConfig()
	if len(os.Args) > 1 {
		loaded, err := forge.LoadConfig(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "forge:", err)
			return 1
		}
		cfg = loaded
	}

	s := forge.NewServer(cfg)

	if err := s.AddPlugin(plugins.NewRecover(s.Logger)); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}
	if err := s.AddPlugin(plugins.NewAccessLog(s.Logger)); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}
	if err := s.AddPlugin(plugins.NewSecure()); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}
	if err := s.AddPlugin(plugins.NewCORS()); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}
	if err := s.AddPlugin(plugins.NewGzip()); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}

	if cfg.DocRoot != "" {
		static, err := plugins.NewStaticFiles("/", cfg.DocRoot, 64<<20, forge.NewMinifier())
		if err != nil {
			fmt.Fprintln(os.Stderr, "forge:", err)
			return 1
		}
		if err := s.AddPlugin(static); err != nil {
			fmt.Fprintln(os.Stderr, "forge:", err)
			return 1
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		s.Stop()
	}()

	if err := s.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "forge:", err)
		return 1
	}

	return 0
}
