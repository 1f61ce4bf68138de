// Package store registers the list of all store type implementations
package store

import (
	"github.com/parchment-log/parchment/base/bconfig"
	"github.com/parchment-log/parchment/store/sbucket"
	"github.com/parchment-log/parchment/store/sbuffer"
	"github.com/parchment-log/parchment/store/scategory"
	"github.com/parchment-log/parchment/store/sfile"
	"github.com/parchment-log/parchment/store/smulti"
	"github.com/parchment-log/parchment/store/snetwork"
	"github.com/parchment-log/parchment/store/snull"
	"github.com/parchment-log/parchment/store/sthriftfile"
)

func init() {
	bconfig.RegisterStoreConfigConstructors(map[string]func() bconfig.StoreConfig{
		"file":            func() bconfig.StoreConfig { return &sfile.Config{} },
		"thriftfile":      func() bconfig.StoreConfig { return &sthriftfile.Config{} },
		"network":         func() bconfig.StoreConfig { return &snetwork.Config{} },
		"buffer":          func() bconfig.StoreConfig { return &sbuffer.Config{} },
		"bucket":          func() bconfig.StoreConfig { return &sbucket.Config{} },
		"multi":           func() bconfig.StoreConfig { return &smulti.Config{} },
		"category":        func() bconfig.StoreConfig { return &scategory.Config{} },
		"multifile":       func() bconfig.StoreConfig { return &scategory.MultiFileConfig{} },
		"thriftmultifile": func() bconfig.StoreConfig { return &scategory.ThriftMultiFileConfig{} },
		"null":            func() bconfig.StoreConfig { return &snull.Config{} },
	})
}

// Register registers all store config types
func Register() {
	// trigger init()
}
