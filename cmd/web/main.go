package main

import (
	"canvassync/internal/discovery"
	"canvassync/internal/server"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
)

func main() {
	discover := flag.Bool("discover", false, "list sync servers advertised on the LAN and exit")
	flag.Parse()

	if *discover {
		err := discovery.Browse(func(addr string) {
			fmt.Println(addr)
		})
		if err != nil {
			logrus.WithError(err).Fatal("discovery failed")
		}
		return
	}

	if err := server.Run(); err != nil {
		logrus.WithError(err).Fatal("server exited")
	}
}
