package project

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Payload is the structured edit a commit owns. Implementations are pointer
// types so they can be decoded in place.
type Payload interface {
	// Kind is the stable type tag written to project files.
	Kind() string
	// Name is the default commit label.
	Name() string
	// Pack applies the payload to the edit's buffer.
	Pack(e *Edit) error
	// Unpack reads the edit's current buffer state back into the payload.
	Unpack(e *Edit) error
}

// Factory returns a new zero payload of one kind.
type Factory func() Payload

// Registry resolves persisted payload types to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry holding factories.
func NewRegistry(factories ...Factory) (*Registry, error) {
	r := &Registry{factories: make(map[string]Factory)}
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a factory under the kind of the payload it produces.
func (r *Registry) Register(f Factory) error {
	kind := f().Kind()
	if kind == "" {
		return fmt.Errorf("project: payload factory has empty kind")
	}
	if _, dup := r.factories[kind]; dup {
		return fmt.Errorf("project: payload kind %q registered twice", kind)
	}
	r.factories[kind] = f
	return nil
}

// New returns a zero payload of kind.
func (r *Registry) New(kind string) (Payload, error) {
	f, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPayload, kind)
	}
	return f(), nil
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// envelope is the persisted form of a payload.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalPayload encodes p inside its type envelope.
func MarshalPayload(p Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload %s: %w", p.Kind(), err)
	}
	return json.Marshal(envelope{Type: p.Kind(), Data: data})
}

// Unmarshal decodes an envelope produced by MarshalPayload.
func (r *Registry) Unmarshal(data []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	p, err := r.New(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", env.Type, err)
		}
	}
	return p, nil
}
