package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutOptions(t *testing.T) {
	svg := putOptions("image/svg+xml")
	assert.Equal(t, "attachment", svg.ContentDisposition)
	assert.Equal(t, "image/svg+xml", svg.ContentType)

	png := putOptions("image/png")
	assert.Empty(t, png.ContentDisposition)
	assert.Equal(t, "public, max-age=86400", png.CacheControl)
}
