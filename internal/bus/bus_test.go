package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{ name string }

func (h nopHandler) Name() string { return h.name }
func (h nopHandler) Handle(ctx context.Context, msg Message, interim InterimOutput) (InterimOutput, error) {
	return interim, nil
}

func TestRegistryRegisterAndFor(t *testing.T) {
	r := NewRegistry()
	require.Empty(t, r.For("topic.a"))

	h1 := nopHandler{name: "h1"}
	h2 := nopHandler{name: "h2"}
	r.Register("topic.a", h1)
	r.Register("topic.a", h2)
	r.Register("topic.b", h1)

	handlers := r.For("topic.a")
	require.Len(t, handlers, 2)
	assert.Equal(t, "h1", handlers[0].Name())
	assert.Equal(t, "h2", handlers[1].Name())

	assert.Len(t, r.For("topic.b"), 1)
	assert.Empty(t, r.For("topic.c"))
}

func TestNewInterimOutput(t *testing.T) {
	interim := NewInterimOutput()
	assert.NotNil(t, interim.Data)
	assert.Empty(t, interim.Data)
}
