package bconfig

import (
	"fmt"

	"github.com/relex/gotils/logger"

	"github.com/parchment-log/parchment/base"
	"github.com/parchment-log/parchment/util"
	"gopkg.in/yaml.v3"
)

// StoreConfig is the configuration of one store node in the pipeline tree
//
// Implementations support YAML unmarshalling and are discriminated by a leading
// "type" property. Composite configs (buffer, bucket, multi, category) embed child
// StoreConfigHolder blocks, forming the nested block structure of the config file.
type StoreConfig interface {

	// GetType returns the type name, e.g. "file" or "network"
	GetType() string

	// NewStore creates a configured but unopened store node for the given category
	NewStore(parentLogger logger.Logger, category string, flags base.StoreFlags, args base.StoreArgs) (base.Store, error)

	// VerifyConfig checks the configuration including all child blocks
	VerifyConfig() error
}

// StoreConfigHolder holds an interface to the actual StoreConfig
//
// The medium is used to support YAML unmarshalling of interface values
type StoreConfigHolder struct {
	Location string `yaml:"-"`
	Value    StoreConfig
}

func (holder StoreConfigHolder) String() string {
	return fmt.Sprint(holder.Value)
}

// MarshalYAML provides custom marshalling to export a readable document. The result is not reversible.
func (holder StoreConfigHolder) MarshalYAML() (interface{}, error) {
	return holder.Value, nil
}

// UnmarshalYAML provides custom unmarshalling for the implementations of StoreConfig
func (holder *StoreConfigHolder) UnmarshalYAML(value *yaml.Node) error {
	if len(value.Content) < 2 {
		return util.NewYamlError(value, ".type is undefined")
	}
	if value.Content[0].Kind != yaml.ScalarNode || value.Content[0].Value != "type" {
		return util.NewYamlError(value, fmt.Sprintf(".type is not the first property, which is: %v", value.Content[0]))
	}
	typeName := value.Content[1].Value

	createFunc, found := storeConfigConstructors[typeName]
	if !found {
		return util.NewYamlError(value, fmt.Sprintf(".type: unsupported '%s'", typeName))
	}
	holder.Value = createFunc()

	if err := value.Decode(holder.Value); err != nil {
		return util.NewYamlError(value, err.Error())
	}
	holder.Location = util.YamlLocation(value)
	return nil
}

// VerifyConfig checks the held configuration, prefixing errors with the YAML location
func (holder *StoreConfigHolder) VerifyConfig() error {
	if holder.Value == nil {
		return fmt.Errorf("store block is undefined")
	}
	if err := holder.Value.VerifyConfig(); err != nil {
		return fmt.Errorf("%s: %w", holder.Location, err)
	}
	return nil
}

var storeConfigConstructors = make(map[string]func() StoreConfig, 16)

// RegisterStoreConfigConstructors registers store config constructors by type name
//
// Each type name can only be registered once
func RegisterStoreConfigConstructors(newMap map[string]func() StoreConfig) {
	for typeName, createFunc := range newMap {
		if _, exists := storeConfigConstructors[typeName]; exists {
			logger.Panicf("store type already registered: %s", typeName)
		}
		storeConfigConstructors[typeName] = createFunc
	}
}
