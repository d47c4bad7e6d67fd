package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetIDOrder(t *testing.T) {
	t.Setenv("HOSTNAME", "container-7")
	t.Setenv("DYNO", "")
	t.Setenv("INSTANCE_ID", "")
	t.Setenv("ZIPSHIFT_INSTANCE_ID", "")
	assert.Equal(t, "container-7", GetID())

	t.Setenv("ZIPSHIFT_INSTANCE_ID", "api-blue")
	assert.Equal(t, "api-blue", GetID())
}
