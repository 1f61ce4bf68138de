package util

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// YamlLocation describes the position of a YAML node, for config error messages
func YamlLocation(node *yaml.Node) string {
	return fmt.Sprintf("yaml line %d:%d", node.Line, node.Column)
}

// NewYamlError creates an error carrying the location of the offending YAML node
func NewYamlError(node *yaml.Node, message string) error {
	return fmt.Errorf("%s: %s", YamlLocation(node), message)
}

// UnmarshalYamlFile loads and unmarshals a YAML file into the given pointer
func UnmarshalYamlFile(path string, output interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return UnmarshalYamlReader(file, output)
}

// UnmarshalYamlString unmarshals YAML text into the given pointer
func UnmarshalYamlString(contents string, output interface{}) error {
	return UnmarshalYamlReader(strings.NewReader(contents), output)
}

// UnmarshalYamlReader unmarshals YAML from a reader into the given pointer,
// rejecting unknown fields outside of custom unmarshalers
func UnmarshalYamlReader(reader io.Reader, output interface{}) error {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	return decoder.Decode(output)
}
