package configfile

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"mini-api/internal/config"
)

const endpointsKey = "endpoints"

// NamedEndpoint is an endpoint definition together with its config key.
type NamedEndpoint struct {
	Key      string
	Endpoint config.EndpointConfig
}

// AppendEndpoints adds endpoints to the "endpoints" mapping of a YAML config
// file. An endpoint whose key already exists is replaced in place. Everything
// else in the file is kept. A missing file is created.
func AppendEndpoints(path string, endpoints []NamedEndpoint) error {
	return edit(path, func(block *yaml.Node) error {
		for _, ne := range endpoints {
			if err := setEndpoint(block, ne); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceEndpoints swaps the whole "endpoints" mapping for the given list.
func ReplaceEndpoints(path string, endpoints []NamedEndpoint) error {
	return edit(path, func(block *yaml.Node) error {
		block.Content = nil
		for _, ne := range endpoints {
			if err := setEndpoint(block, ne); err != nil {
				return err
			}
		}
		return nil
	})
}

func edit(path string, fn func(block *yaml.Node) error) error {
	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: top level is not a mapping", path)
	}
	block := mappingValue(root, endpointsKey)
	if block == nil || block.Kind != yaml.MappingNode {
		if block != nil {
			return fmt.Errorf("%s: %q is not a mapping", path, endpointsKey)
		}
		block = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: endpointsKey}, block)
	}

	if err := fn(block); err != nil {
		return err
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}
	return &doc, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setEndpoint(block *yaml.Node, ne NamedEndpoint) error {
	var value yaml.Node
	if err := value.Encode(ne.Endpoint); err != nil {
		return fmt.Errorf("encode endpoint %s: %w", ne.Key, err)
	}

	for i := 0; i+1 < len(block.Content); i += 2 {
		if block.Content[i].Value == ne.Key {
			block.Content[i+1] = &value
			return nil
		}
	}
	block.Content = append(block.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ne.Key}, &value)
	return nil
}
