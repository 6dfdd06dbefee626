package storage

import (
	"context"
	"testing"

	"github.com/hyperjump/syntra/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStorage(t *testing.T) {
	runStorageTests(t, func(t *testing.T) Storage {
		return NewMemoryStorage()
	})
}

func TestMemoryStorage_Closed(t *testing.T) {
	s := NewMemoryStorage()
	_ = s.Close()
	err := s.CreateNode(context.Background(), testNode("a", 0, 1), nil)
	assert.ErrorIs(t, err, models.ErrRepository)
	_, err = s.ListNodes(context.Background())
	assert.ErrorIs(t, err, models.ErrRepository)
}
