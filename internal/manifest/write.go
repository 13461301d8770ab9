package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileName is the archive manifest written into the output dir.
const FileName = "manifest.yaml"

// Entry summarizes one conversation in the produced archive.
type Entry struct {
	Conversation string
	Documents    int
	Attachments  int
	Kinds        map[string]int
}

// Marshal returns canonical YAML for the archive manifest: conversations
// sorted by name, map keys sorted, stable indentation. Canonical bytes keep
// regenerated manifests diffable.
func Marshal(generator string, entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Conversation < sorted[j].Conversation })

	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range sorted {
		m := map[string]any{
			"conversation": e.Conversation,
			"documents":    e.Documents,
			"attachments":  e.Attachments,
		}
		if len(e.Kinds) > 0 {
			kinds := map[string]any{}
			for k, v := range e.Kinds {
				kinds[k] = v
			}
			m["kinds"] = kinds
		}
		seq.Content = append(seq.Content, canonicalMapNode(m))
	}

	top := &yaml.Node{Kind: yaml.MappingNode}
	top.Content = append(top.Content, scalarNode("generator"), scalarFrom(generator))
	top.Content = append(top.Content, scalarNode("conversations"), seq)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(top); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	out = append(out, '\n')
	return out, nil
}

// Write writes the canonical manifest to path, creating parent directories.
func Write(path, generator string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := Marshal(generator, entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func scalarFrom(v any) *yaml.Node {
	n := &yaml.Node{}
	_ = n.Encode(v)
	return n
}

func canonicalNode(v any) *yaml.Node {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.MappingNode}
	case map[string]any:
		return canonicalMapNode(x)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode}
		for _, it := range x {
			n.Content = append(n.Content, canonicalNode(it))
		}
		return n
	default:
		return scalarFrom(x)
	}
}

func canonicalMapNode(m map[string]any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if len(m) == 0 {
		return n
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Content = append(n.Content, scalarNode(k), canonicalNode(m[k]))
	}
	return n
}
