// Package discovery advertises the sync endpoint on the local network so
// canvas clients on the same LAN can find it without a configured address.
package discovery

import (
	"fmt"
	"os"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

const ServiceType = "_canvassync._tcp"

// TXT record advertising the websocket path.
const wsPathRecord = "path=/ws"

type Advertiser struct {
	server *mdns.Server
}

// Advertise announces the service on port. An empty instance name falls
// back to the host name.
func Advertise(instance string, port int) (*Advertiser, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("getting hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(instance, ServiceType, "", "", port, nil, []string{wsPathRecord})
	if err != nil {
		return nil, fmt.Errorf("creating mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("starting mDNS server: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"component": "discovery",
		"instance":  instance,
		"service":   ServiceType,
		"port":      port,
	}).Info("advertising on LAN")
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}

// Browse reports the address of every sync server answering on the LAN
// until the lookup times out.
func Browse(found func(addr string)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port))
		}
	}()
	err := mdns.Lookup(ServiceType, entries)
	close(entries)
	<-done
	if err != nil {
		return fmt.Errorf("browsing for %s: %w", ServiceType, err)
	}
	return nil
}
