package storage

import "fmt"

const DefaultStoreKind = "memory"

func NewStore(kind string) (Store, error) {
	switch kind {
	case "", DefaultStoreKind:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}
