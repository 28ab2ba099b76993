// Package config holds the built-in configuration of the mock provider layer
// and composes it with overlays from other layers, tests and the user.
package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config.yaml
var baseConfig []byte

//go:embed test_overlay.yaml
var testOverlay []byte

// BaseText returns the text of the built-in base configuration.
func BaseText() string { return string(baseConfig) }

// TestOverlayText returns the text of the built-in test overlay.
func TestOverlayText() string { return string(testOverlay) }

// TestOverlay returns the built-in test overlay document.
func TestOverlay() []byte { return append([]byte(nil), testOverlay...) }

// Compose merges overlays, in order, on top of the base configuration.
func Compose(overlays ...[]byte) ([]byte, error) {
	return Merge(append([][]byte{baseConfig}, overlays...)...)
}

// Merge deep-merges YAML documents left to right. Mappings are merged key by
// key; scalars and sequences in a later document replace earlier ones.
// Aliases are expanded before merging, so the result carries no anchors.
// Empty documents are skipped.
func Merge(layers ...[]byte) ([]byte, error) {
	var out *yaml.Node
	for i, layer := range layers {
		var doc yaml.Node
		if err := yaml.Unmarshal(layer, &doc); err != nil {
			return nil, fmt.Errorf("parse configuration layer %d: %w", i, err)
		}
		if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
			continue
		}
		root := expand(doc.Content[0])
		if out == nil {
			doc.Content = []*yaml.Node{root}
			out = &doc
			continue
		}
		out.Content[0] = mergeNode(out.Content[0], root)
	}
	if out == nil {
		return nil, nil
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode merged configuration: %w", err)
	}
	return data, nil
}

// expand returns a copy of n with every alias replaced by a copy of the node
// it refers to and all anchors dropped.
func expand(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	c := *n
	c.Anchor = ""
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = expand(child)
		}
	}
	return &c
}

func mergeNode(dst, src *yaml.Node) *yaml.Node {
	if dst.Kind != yaml.MappingNode || src.Kind != yaml.MappingNode {
		return src
	}
	for i := 0; i+1 < len(src.Content); i += 2 {
		key, val := src.Content[i], src.Content[i+1]
		if j := mappingIndex(dst, key.Value); j >= 0 {
			dst.Content[j+1] = mergeNode(dst.Content[j+1], val)
		} else {
			dst.Content = append(dst.Content, key, val)
		}
	}
	return dst
}

func mappingIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}
