package query

import (
	"encoding/json"
	"slices"
)

// Key identifies a cached resource: the resource name followed by its
// parameters, in order. An empty string stands for an absent parameter.
type Key []string

// DeriveKey returns the key for resource and params.
func DeriveKey(resource string, params ...string) Key {
	k := make(Key, 0, len(params)+1)
	k = append(k, resource)
	return append(k, params...)
}

// Resource returns the resource name.
func (k Key) Resource() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Equal reports whether k and o name the same resource with the same params.
func (k Key) Equal(o Key) bool {
	return slices.Equal(k, o)
}

// HasPrefix reports whether k starts with every element of prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return len(prefix) <= len(k) && slices.Equal(k[:len(prefix)], prefix)
}

// String returns the canonical JSON-array form of the key. Equal keys have
// equal strings and the encoding is unambiguous for any parameter value.
func (k Key) String() string {
	data, _ := json.Marshal([]string(k))
	return string(data)
}
