// Command remoteserver runs a reference backend/remote.Server: an
// in-memory register store reachable over TCP, for exercising the
// backend/remote client without real hardware.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/chimeradev/regaccess/backend/remote"
	"github.com/chimeradev/regaccess/catalogue"
)

var (
	listenAddr = flag.String("listen", ":7845", "Address to listen on, host:port.")
	mapPath    = flag.String("map", "", "Map file describing the served catalogue.")
	spaceSize  = flag.Int64("space-size", 1<<20, "Byte size of address space 0.")
)

func main() {
	flag.Parse()

	cat := catalogue.New()
	if *mapPath != "" {
		mf, err := catalogue.FromMapFile(*mapPath)
		if err != nil {
			fmt.Printf("cannot read map file: %v\n", err)
			os.Exit(1)
		}
		cat = mf.Catalogue()
	}

	srv, err := remote.NewServer(*listenAddr, cat, map[int]int64{0: *spaceSize})
	if err != nil {
		fmt.Printf("cannot start server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("remoteserver: listening on %s\n", srv.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		srv.Close()
	}()

	srv.Serve()
}
