// Package discovery finds devices on the local IPv4 subnet by pairing
// reachability probes with the operating system's neighbor (ARP) cache.
//
// # Sweep
//
// A sweep covers the /24 around the first up, non-loopback IPv4 interface:
//  1. One ICMP echo is sent to each of x.y.z.1 through x.y.z.254, all at once
//  2. The engine waits for every probe to settle; failures count as unreachable
//  3. The neighbor cache is listed once and joined with the hosts that answered
//  4. Hosts with no cached hardware address are left out of the result
//
// Probes run concurrently, so a sweep takes roughly one probe timeout.
// Without a qualifying interface a sweep fails with ErrNoInterface.
//
// # Neighbor Cache Grammars
//
// The listing command and its output format depend on the OS family, chosen
// from runtime.GOOS rather than by trying each parser in turn:
//
//	ColonParser   linux      ip -4 neigh show   192.168.1.1 dev eth0 lladdr aa:bb:cc:dd:ee:ff
//	HyphenParser  windows    arp -a             192.168.1.1    aa-bb-cc-dd-ee-ff   dynamic
//	ParenParser   darwin/BSD arp -an            ? (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0
//
// Hardware addresses are normalized to upper-case colon-delimited form.
//
// # Usage Example
//
//	engine := discovery.NewEngine(discovery.Config{})
//	devices, err := engine.ScanAll(ctx)
//	if errors.Is(err, discovery.ErrNoInterface) {
//	    // not attached to a network
//	}
//	for _, d := range devices {
//	    fmt.Println(d.String())
//	}
//
// # Enrichment
//
// An MDNSBrowser adds host names announced over multicast DNS, and a
// VendorLookup adds the manufacturer from an IEEE OUI database. Both are
// optional and never affect which devices are reported.
package discovery
