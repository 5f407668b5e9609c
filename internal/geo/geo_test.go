package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLocatorIsEmpty(t *testing.T) {
	var l *Locator

	country, city := l.Locate("8.8.8.8")
	assert.Empty(t, country)
	assert.Empty(t, city)
	assert.NoError(t, l.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open("testdata/does-not-exist.mmdb")
	require.Error(t, err)
}
