package imagestore

import (
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectName(t *testing.T) {
	s := &GCSStore{bucket: "apparel-images", prefix: "products"}

	name := s.objectName("arsenal-home.jpg")
	assert.True(t, strings.HasPrefix(name, "products/"))
	assert.Equal(t, ".jpg", path.Ext(name))

	// two uploads of the same filename never collide
	assert.NotEqual(t, name, s.objectName("arsenal-home.jpg"))
}

func TestObjectNameWithoutPrefix(t *testing.T) {
	s := &GCSStore{bucket: "apparel-images"}
	assert.False(t, strings.Contains(s.objectName("x.png"), "/"))
}

func TestObjectFromURL(t *testing.T) {
	s := &GCSStore{bucket: "apparel-images", prefix: "products"}

	object, err := s.objectFromURL("https://storage.googleapis.com/apparel-images/products/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "products/abc.jpg", object)
}

func TestObjectFromURLRejectsForeign(t *testing.T) {
	s := &GCSStore{bucket: "apparel-images"}

	_, err := s.objectFromURL("https://storage.googleapis.com/other-bucket/abc.jpg")
	assert.Error(t, err)

	_, err = s.objectFromURL("https://cdn.example.com/abc.jpg")
	assert.Error(t, err)

	_, err = s.objectFromURL("https://storage.googleapis.com/apparel-images/")
	assert.Error(t, err)
}
