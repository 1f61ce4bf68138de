package bconfig

import (
	"github.com/c2h5oh/datasize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count accepting human-readable YAML values like "100MB"
type ByteSize datasize.ByteSize

// Bytes returns the plain byte count
func (size ByteSize) Bytes() uint64 {
	return datasize.ByteSize(size).Bytes()
}

// String formats the size in human-readable form
func (size ByteSize) String() string {
	return datasize.ByteSize(size).HumanReadable()
}

// MarshalYAML exports the human-readable form
func (size ByteSize) MarshalYAML() (interface{}, error) {
	return datasize.ByteSize(size).String(), nil
}

// UnmarshalYAML accepts either a plain number of bytes or a value with a unit suffix
func (size *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var parsed datasize.ByteSize
	if err := parsed.UnmarshalText([]byte(node.Value)); err != nil {
		return err
	}
	*size = ByteSize(parsed)
	return nil
}
