package discovery

import "errors"

// ErrDiscovery is returned when the discovery document can not be fetched or is malformed.
var ErrDiscovery = errors.New("discovery failed")
