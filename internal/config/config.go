// Package config implements the C10 config store: a typed-value registry
// with bounds, lookups, and string fields, persisted as a CRC32-protected
// blob on the flash file store. Generalizes the teacher's
// internal/config.Config (a flat struct plus Load/Validate) into a field
// registry so that the out-of-scope CLI's get/set/dump/defaults operations
// (spec.md §6) have something to operate on by name.
package config

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode is how a Field's value is stored and interpreted.
type Mode int

const (
	Direct Mode = iota // a single scalar (int32 or float32)
	Lookup             // an index into a named enum
	Bitset             // a bitfield
	Array              // a fixed-length array of scalars
	String             // a short fixed-capacity string
)

// Field describes one named, bounded config value (spec.md §4.10).
type Field struct {
	Name    string
	Mode    Mode
	IsFloat bool // Direct mode only: value lives in F32 rather than I32

	// Value storage. Exactly one of these is meaningful, selected by Mode
	// (and IsFloat for Direct).
	I32 int32
	F32 float32
	Bits uint32
	Arr  []int32
	Str  string

	// Bounds, enforced by SetFloat.
	Min, Max float64
	HasBound bool

	// Required means Validate rejects a config missing this field from the
	// loaded blob — used for main_altitude, which spec.md §9 says has no
	// sane default.
	Required bool
}

// Registry is the live, boot-populated field set. It is built once at boot
// from persisted config (or factory defaults) and is read-only afterwards,
// per spec.md §3 ("Config: immutable after load").
type Registry struct {
	fields map[string]*Field
	order  []string
}

// NewRegistry builds a registry from field descriptors, in declaration
// order (order is preserved for Dump).
func NewRegistry(fields []Field) *Registry {
	r := &Registry{fields: make(map[string]*Field, len(fields))}
	for i := range fields {
		f := fields[i]
		r.fields[f.Name] = &f
		r.order = append(r.order, f.Name)
	}
	return r
}

// Field returns the named field, or nil if it does not exist.
func (r *Registry) Field(name string) *Field { return r.fields[name] }

// Get returns fields whose name contains substr — the lookup-by-substring
// semantics of spec.md §4.10.
func (r *Registry) Get(substr string) []*Field {
	var out []*Field
	for _, name := range r.order {
		if strings.Contains(name, substr) {
			out = append(out, r.fields[name])
		}
	}
	return out
}

// SetFloat sets an exact-named field's numeric value, enforcing bounds.
func (r *Registry) SetFloat(name string, v float64) error {
	f, ok := r.fields[name]
	if !ok {
		return fmt.Errorf("config: unknown field %q", name)
	}
	if f.HasBound && (v < f.Min || v > f.Max) {
		return fmt.Errorf("config: %q=%v out of bounds [%v, %v]", name, v, f.Min, f.Max)
	}
	switch f.Mode {
	case Direct:
		if f.IsFloat {
			f.F32 = float32(v)
		} else {
			f.I32 = int32(v)
		}
	case Lookup, Bitset:
		f.Bits = uint32(v)
	default:
		return fmt.Errorf("config: field %q does not accept numeric Set", name)
	}
	return nil
}

// Dump returns every field name and its current value as a string, in
// declaration order — backs the out-of-scope CLI's `dump` command.
func (r *Registry) Dump() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, fmt.Sprintf("%s=%s", name, r.fields[name].stringValue()))
	}
	return out
}

func (f *Field) stringValue() string {
	switch f.Mode {
	case Direct:
		if f.IsFloat {
			return fmt.Sprintf("%g", f.F32)
		}
		return fmt.Sprintf("%d", f.I32)
	case Lookup, Bitset:
		return fmt.Sprintf("0x%x", f.Bits)
	case Array:
		return fmt.Sprintf("%v", f.Arr)
	case String:
		return f.Str
	default:
		return ""
	}
}

// Validate checks that every Required field was present in a loaded blob.
func (r *Registry) Validate(seen map[string]bool) error {
	var missing []string
	for _, name := range r.order {
		f := r.fields[name]
		if f.Required && !seen[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// blobMagic tags the persisted format so Load can distinguish a foreign
// file from a truncated/corrupt one before trusting the CRC.
const blobMagic = uint32(0xCA75_0001)

// Save serializes the registry to a CRC32-protected blob: a YAML document
// of name->value pairs (human-diffable, matching the teacher's config.yaml
// shape) followed by a magic/length/CRC32 trailer. The CRC covers the YAML
// bytes only.
func Save(r *Registry) ([]byte, error) {
	m := make(map[string]any, len(r.order))
	for _, name := range r.order {
		f := r.fields[name]
		switch f.Mode {
		case Direct:
			if f.IsFloat {
				m[name] = f.F32
			} else {
				m[name] = f.I32
			}
		case Lookup, Bitset:
			m[name] = f.Bits
		case Array:
			m[name] = f.Arr
		case String:
			m[name] = f.Str
		}
	}
	yamlBytes, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("config.Save: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(yamlBytes)
	trailer := make([]byte, 12)
	binary.LittleEndian.PutUint32(trailer[0:4], blobMagic)
	binary.LittleEndian.PutUint32(trailer[4:8], uint32(len(yamlBytes)))
	binary.LittleEndian.PutUint32(trailer[8:12], crc32.ChecksumIEEE(yamlBytes))
	buf.Write(trailer)
	return buf.Bytes(), nil
}

// Load verifies a blob's CRC32 and populates a fresh registry built from
// fields. On any structural or CRC mismatch it returns an error so the
// caller can raise errflags.NonUserCfg and fall back to Defaults(), per
// spec.md §7/§8 ("tampered blobs yield defaults plus NON_USER_CFG").
func Load(blob []byte, fields []Field) (*Registry, error) {
	if len(blob) < 12 {
		return nil, fmt.Errorf("config.Load: blob too short (%d bytes)", len(blob))
	}
	trailer := blob[len(blob)-12:]
	magic := binary.LittleEndian.Uint32(trailer[0:4])
	n := binary.LittleEndian.Uint32(trailer[4:8])
	wantCRC := binary.LittleEndian.Uint32(trailer[8:12])
	if magic != blobMagic {
		return nil, fmt.Errorf("config.Load: bad magic 0x%x", magic)
	}
	if int(n) != len(blob)-12 {
		return nil, fmt.Errorf("config.Load: length field %d does not match blob", n)
	}
	yamlBytes := blob[:n]
	if crc32.ChecksumIEEE(yamlBytes) != wantCRC {
		return nil, fmt.Errorf("config.Load: CRC32 mismatch")
	}

	var m map[string]yaml.Node
	if err := yaml.Unmarshal(yamlBytes, &m); err != nil {
		return nil, fmt.Errorf("config.Load: parse: %w", err)
	}

	r := NewRegistry(fields)
	seen := make(map[string]bool, len(m))
	for name, node := range m {
		f, ok := r.fields[name]
		if !ok {
			continue // unknown field in blob; ignore rather than fail hard
		}
		node := node
		if err := decodeInto(f, &node); err != nil {
			return nil, fmt.Errorf("config.Load: field %q: %w", name, err)
		}
		seen[name] = true
	}
	if err := r.Validate(seen); err != nil {
		return nil, err
	}
	return r, nil
}

func decodeInto(f *Field, node *yaml.Node) error {
	switch f.Mode {
	case Direct:
		if f.IsFloat {
			return node.Decode(&f.F32)
		}
		return node.Decode(&f.I32)
	case Lookup, Bitset:
		return node.Decode(&f.Bits)
	case Array:
		return node.Decode(&f.Arr)
	case String:
		return node.Decode(&f.Str)
	}
	return nil
}
