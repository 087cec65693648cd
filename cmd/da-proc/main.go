package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/programmer229/CS451-2025-project/internal/cliargs"
	"github.com/programmer229/CS451-2025-project/internal/driver"
	"github.com/programmer229/CS451-2025-project/internal/hostfile"
	"github.com/programmer229/CS451-2025-project/internal/outlog"
	"github.com/programmer229/CS451-2025-project/internal/runconfig"
	"github.com/programmer229/CS451-2025-project/internal/transport"
)

func main() {
	args, err := cliargs.Parse(os.Args[1:])
	if err != nil {
		log.Fatalf("[INIT] -> %v", err)
	}

	roster, err := hostfile.Load(args.HostsPath)
	if err != nil {
		log.Fatalf("[INIT] -> %v", err)
	}
	self, ok := roster.Lookup(args.ID)
	if !ok {
		log.Fatalf("[INIT] -> id %d not present in hosts file", args.ID)
	}

	cfg, err := runconfig.Load(args.ConfigPath)
	if err != nil {
		log.Fatalf("[INIT] -> %v", err)
	}

	out, err := outlog.Open(args.OutputPath)
	if err != nil {
		log.Fatalf("[INIT] -> %v", err)
	}

	tr, err := transport.Listen(self.Addr)
	if err != nil {
		log.Fatalf("[INIT] -> bind failed on %s: %v", self.Addr, err)
	}
	defer tr.Close()

	var d *driver.Driver
	switch {
	case cfg.Broadcast != nil:
		log.Printf("[INIT] -> process %d starting in broadcast mode (M=%d)", args.ID, cfg.Broadcast.M)
		d = driver.NewBroadcast(args.ID, roster, tr, out, *cfg.Broadcast)
	case cfg.Agreement != nil:
		log.Printf("[INIT] -> process %d starting in agreement mode (%d slots)", args.ID, len(cfg.Agreement.Proposals))
		d = driver.NewAgreement(args.ID, roster, tr, out, *cfg.Agreement)
	default:
		log.Fatalf("[INIT] -> config declares neither broadcast nor agreement mode")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	d.Run(sig)

	if err := out.Close(); err != nil {
		log.Fatalf("[SHUTDOWN] -> close failed: %v", err)
	}
}
