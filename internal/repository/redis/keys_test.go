package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewingContextKey(t *testing.T) {
	assert.Equal(t, "meucuidador:viewing_context:42", ViewingContextKey(42))
}
