// Package paramcontainer implements a reflective, path-addressed
// parameter container: a set of bindings between slash-delimited JSON
// paths and live program variables, serialised to and from a JSON
// document in both directions.
//
// Rather than runtime reflection, each binding is a small sum type
// (see Kind) carrying get/set closures over a typed pointer, built once
// by the Bind* methods at construction time of a concrete container.
// No binding may be added or removed afterwards.
package paramcontainer

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies the scalar or vector type underlying a binding.
type Kind int

// Supported binding kinds, one per scalar type in spec plus their
// homogeneous vector counterparts.
const (
	KindI32 Kind = iota
	KindU32
	KindI64
	KindU64
	KindF64
	KindBool
	KindString
	KindVecI32
	KindVecU32
	KindVecI64
	KindVecU64
	KindVecF64
	KindVecBool
	KindVecString
)

// binding is the sum-type realisation described in spec.md's design
// notes: a Kind tag plus get/set closures over the live variable. The
// closures are built once, by the matching Bind* call.
type binding struct {
	kind Kind
	get  func() interface{}
	set  func(v interface{}) error
}

// Container is a path-addressed set of bindings over live program
// variables. It implements the encode/update semantics of spec.md §4.1.
// Not safe for concurrent use; callers must serialise access to a
// single goroutine (the control thread), per spec.md §5.
type Container struct {
	bindings map[string]*binding
	order    []string
}

// New returns an empty Container. Concrete containers (e.g. pco's
// CameraConfig) embed Container and call Bind* from their constructor.
func New() Container {
	return Container{bindings: make(map[string]*binding)}
}

func (c *Container) register(path string, b *binding) {
	if c.bindings == nil {
		c.bindings = make(map[string]*binding)
	}
	if _, exists := c.bindings[path]; exists {
		panic(&DuplicatePath{Path: path})
	}
	c.bindings[path] = b
	c.order = append(c.order, path)
}

// BindI32 binds a signed 32-bit integer variable to path.
func (c *Container) BindI32(path string, p *int32) {
	c.register(path, &binding{
		kind: KindI32,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			i, err := asInt64(v)
			if err != nil {
				return err
			}
			*p = int32(i)
			return nil
		},
	})
}

// BindU32 binds an unsigned 32-bit integer variable to path.
func (c *Container) BindU32(path string, p *uint32) {
	c.register(path, &binding{
		kind: KindU32,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			i, err := asInt64(v)
			if err != nil {
				return err
			}
			*p = uint32(i)
			return nil
		},
	})
}

// BindI64 binds a signed 64-bit integer variable to path.
func (c *Container) BindI64(path string, p *int64) {
	c.register(path, &binding{
		kind: KindI64,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			i, err := asInt64(v)
			if err != nil {
				return err
			}
			*p = i
			return nil
		},
	})
}

// BindU64 binds an unsigned 64-bit integer variable to path.
func (c *Container) BindU64(path string, p *uint64) {
	c.register(path, &binding{
		kind: KindU64,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			i, err := asInt64(v)
			if err != nil {
				return err
			}
			*p = uint64(i)
			return nil
		},
	})
}

// BindF64 binds a double-precision variable to path.
func (c *Container) BindF64(path string, p *float64) {
	c.register(path, &binding{
		kind: KindF64,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			f, ok := v.(float64)
			if !ok {
				return &TypeMismatch{Path: path, Reason: "expected number"}
			}
			*p = f
			return nil
		},
	})
}

// BindBool binds a boolean variable to path.
func (c *Container) BindBool(path string, p *bool) {
	c.register(path, &binding{
		kind: KindBool,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			b, ok := v.(bool)
			if !ok {
				return &TypeMismatch{Path: path, Reason: "expected bool"}
			}
			*p = b
			return nil
		},
	})
}

// BindString binds a string variable to path.
func (c *Container) BindString(path string, p *string) {
	c.register(path, &binding{
		kind: KindString,
		get:  func() interface{} { return *p },
		set: func(v interface{}) error {
			s, ok := v.(string)
			if !ok {
				return &TypeMismatch{Path: path, Reason: "expected string"}
			}
			*p = s
			return nil
		},
	})
}

// BindVecF64 binds a vector of doubles to path, preserving order.
func (c *Container) BindVecF64(path string, p *[]float64) {
	c.register(path, &binding{
		kind: KindVecF64,
		get: func() interface{} {
			out := make([]interface{}, len(*p))
			for i, v := range *p {
				out[i] = v
			}
			return out
		},
		set: func(v interface{}) error {
			items, ok := v.([]interface{})
			if !ok {
				return &TypeMismatch{Path: path, Reason: "expected array"}
			}
			out := make([]float64, len(items))
			for i, item := range items {
				f, ok := item.(float64)
				if !ok {
					return &TypeMismatch{Path: path, Reason: "expected array of numbers"}
				}
				out[i] = f
			}
			*p = out
			return nil
		},
	})
}

// BindVecString binds a vector of strings to path, preserving order.
func (c *Container) BindVecString(path string, p *[]string) {
	c.register(path, &binding{
		kind: KindVecString,
		get: func() interface{} {
			out := make([]interface{}, len(*p))
			for i, v := range *p {
				out[i] = v
			}
			return out
		},
		set: func(v interface{}) error {
			items, ok := v.([]interface{})
			if !ok {
				return &TypeMismatch{Path: path, Reason: "expected array"}
			}
			out := make([]string, len(items))
			for i, item := range items {
				s, ok := item.(string)
				if !ok {
					return &TypeMismatch{Path: path, Reason: "expected array of strings"}
				}
				out[i] = s
			}
			*p = out
			return nil
		},
	})
}

func asInt64(v interface{}) (int64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, &TypeMismatch{Reason: "expected number"}
	}
	if f != float64(int64(f)) {
		return 0, &TypeMismatch{Reason: "expected integer-valued number"}
	}
	return int64(f), nil
}

// Encode serialises every bound path into a fresh JSON document.
func (c *Container) Encode() (string, error) {
	doc := map[string]interface{}{}
	if err := c.EncodeInto(doc, ""); err != nil {
		return "", err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "paramcontainer: encode")
	}
	return string(b), nil
}

// EncodeInto merges the container's paths into doc under prefix.
// prefix is normalised to begin with "/" and end with "/" unless empty.
func (c *Container) EncodeInto(doc map[string]interface{}, prefix string) error {
	prefix = normalisePrefix(prefix)
	paths := c.sortedPaths()
	for _, path := range paths {
		b := c.bindings[path]
		setAtPath(doc, prefix+path, b.get())
	}
	return nil
}

// Update parses JSON bytes and replays them through Update(doc).
func (c *Container) Update(data []byte) error {
	var doc map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	if err := dec.Decode(&doc); err != nil {
		offset := dec.InputOffset()
		if se, ok := err.(*json.SyntaxError); ok {
			offset = se.Offset
		}
		return &ParseError{Offset: offset, Reason: err.Error()}
	}
	return c.UpdateDoc(doc)
}

// UpdateString is a convenience wrapper around Update.
func (c *Container) UpdateString(s string) error {
	return c.Update([]byte(s))
}

// UpdateDoc applies doc to every bound path present in it. Paths present
// in doc but not bound are silently ignored. Paths bound but absent from
// doc are left untouched. The first TypeMismatch encountered aborts the
// remaining applications, mirroring the exception-propagation behaviour
// of the original rapidjson-based setter dispatch.
func (c *Container) UpdateDoc(doc map[string]interface{}) error {
	for _, path := range c.sortedPaths() {
		val, ok := lookupPath(doc, path)
		if !ok {
			continue
		}
		b := c.bindings[path]
		if err := b.set(val); err != nil {
			return err
		}
	}
	return nil
}

// UpdateFrom replays other's current values into c. Used to implement
// container copy: the caller constructs a fresh container of the same
// concrete type (re-running the binding step) and then calls
// UpdateFrom(source) to replay the source's values; bindings are never
// shared between the two.
func (c *Container) UpdateFrom(other *Container) error {
	s, err := other.Encode()
	if err != nil {
		return err
	}
	return c.UpdateString(s)
}

func (c *Container) sortedPaths() []string {
	paths := make([]string, len(c.order))
	copy(paths, c.order)
	sort.Strings(paths)
	return paths
}

func normalisePrefix(prefix string) string {
	if prefix == "" {
		return ""
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix = prefix + "/"
	}
	return prefix
}

// setAtPath writes value into doc at a slash-delimited path, creating
// intermediate nested maps as needed.
func setAtPath(doc map[string]interface{}, path string, value interface{}) {
	parts := splitPath(path)
	cur := doc
	for i, part := range parts {
		if i == len(parts)-1 {
			cur[part] = value
			return
		}
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[part] = next
		}
		cur = next
	}
}

// lookupPath reads a slash-delimited path out of a nested document,
// returning ok=false if any segment is missing.
func lookupPath(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := splitPath(path)
	var cur interface{} = doc
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	return strings.Split(path, "/")
}
