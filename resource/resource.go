// Package resource implements reading and writing of JSON translation
// resource files, one file per locale.
//
// A resource file maps translation keys to human-readable strings and
// may nest keys in objects:
//
//	{
//	    "state": {
//	        "on": "On",
//	        "off": "Off"
//	    },
//	    "greeting": "Hello, {name}!"
//	}
//
// Keys are stable identifiers referenced by the application UI.
// Placeholder tokens such as {name} are substituted at presentation
// time by the UI and pass through this package untouched. Files are
// always rewritten wholesale; no partial merges are performed.
package resource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File represents a parsed translation resource for one locale.
type File struct {
	// Locale is the locale code the file belongs to (from the file name).
	Locale string

	flat map[string]string // dotted key -> value
}

// ParseFile reads and parses a resource file. The locale is taken from
// the file name (ru.json -> ru).
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	locale := strings.TrimSuffix(filepath.Base(path), ".json")
	f, err := Parse(locale, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Parse parses resource JSON data for the given locale.
func Parse(locale string, data []byte) (*File, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	flat := make(map[string]string)
	if err := flattenInto(flat, "", root); err != nil {
		return nil, err
	}

	return &File{Locale: locale, flat: flat}, nil
}

// FromFlat builds a resource from a flat key/value mapping, as returned
// by the remote service download.
func FromFlat(locale string, flat map[string]string) *File {
	copied := make(map[string]string, len(flat))
	for k, v := range flat {
		copied[k] = v
	}
	return &File{Locale: locale, flat: copied}
}

// flattenInto walks a decoded JSON object, joining nested keys with "."
// and collecting string leaves. Any non-string, non-object leaf is an
// error: resource files hold only key/value string data.
func flattenInto(dst map[string]string, prefix string, obj map[string]any) error {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			if err := flattenInto(dst, key, val); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %q: expected string or object, got %T", key, v)
		}
	}
	return nil
}

// Flatten returns a copy of the resource as a flat dotted-key mapping.
func (f *File) Flatten() map[string]string {
	out := make(map[string]string, len(f.flat))
	for k, v := range f.flat {
		out[k] = v
	}
	return out
}

// Keys returns the sorted dotted keys.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.flat))
	for k := range f.flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lookup returns the value for a dotted key.
func (f *File) Lookup(key string) (string, bool) {
	v, ok := f.flat[key]
	return v, ok
}

// Len returns the number of keys.
func (f *File) Len() int {
	return len(f.flat)
}

// Coverage compares this resource against the source-locale resource
// and returns how many of the source keys are present with a non-empty
// value.
func (f *File) Coverage(source *File) (total, translated, missing int) {
	for k := range source.flat {
		total++
		if v, ok := f.flat[k]; ok && v != "" {
			translated++
		} else {
			missing++
		}
	}
	return
}

// WriteFile overwrites the resource file wholesale: nested JSON with
// sorted keys, 2-space indentation, and a trailing newline.
func (f *File) WriteFile(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Marshal renders the nested JSON form of the resource.
func (f *File) Marshal() ([]byte, error) {
	root := unflatten(f.flat)

	var b strings.Builder
	if err := writeObject(&b, root, 0); err != nil {
		return nil, err
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// node is either a string leaf or a nested object.
type node struct {
	leaf     string
	children map[string]*node
}

func unflatten(flat map[string]string) *node {
	root := &node{children: make(map[string]*node)}
	for key, value := range flat {
		parts := strings.Split(key, ".")
		cur := root
		for _, part := range parts[:len(parts)-1] {
			next := cur.children[part]
			if next == nil || next.children == nil {
				next = &node{children: make(map[string]*node)}
				cur.children[part] = next
			}
			cur = next
		}
		cur.children[parts[len(parts)-1]] = &node{leaf: value}
	}
	return root
}

func writeObject(b *strings.Builder, n *node, depth int) error {
	b.WriteString("{")
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	indent := strings.Repeat("  ", depth+1)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
		b.WriteString(indent)

		encKey, err := json.Marshal(k)
		if err != nil {
			return err
		}
		b.Write(encKey)
		b.WriteString(": ")

		child := n.children[k]
		if child.children != nil {
			if err := writeObject(b, child, depth+1); err != nil {
				return err
			}
			continue
		}
		encVal, err := json.Marshal(child.leaf)
		if err != nil {
			return err
		}
		b.Write(encVal)
	}

	if len(keys) > 0 {
		b.WriteByte('\n')
		b.WriteString(strings.Repeat("  ", depth))
	}
	b.WriteString("}")
	return nil
}
