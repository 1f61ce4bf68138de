package forward

import (
	"fmt"
	"sync"
)

// Resolver maps a service name to a peer address, for service-discovery based
// NetworkStores; the default host:port path never goes through a resolver
type Resolver func(service string) (address string, err error)

var (
	resolverLock sync.Mutex
	resolvers    = make(map[string]Resolver, 4)
)

// RegisterResolver installs a named resolver; the name is referenced by the
// network store option "service_discovery"
func RegisterResolver(name string, resolver Resolver) {
	resolverLock.Lock()
	defer resolverLock.Unlock()
	resolvers[name] = resolver
}

// ResolveService resolves a service name with the named resolver
func ResolveService(resolverName string, service string) (string, error) {
	resolverLock.Lock()
	resolver, found := resolvers[resolverName]
	resolverLock.Unlock()
	if !found {
		return "", fmt.Errorf("unknown service resolver '%s'", resolverName)
	}
	return resolver(service)
}
