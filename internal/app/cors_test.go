package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginHost(t *testing.T) {
	assert.Equal(t, "govorilka.ru", originHost("https://govorilka.ru"))
	assert.Equal(t, "govorilka.ru:8080", originHost("http://govorilka.ru:8080"))
	assert.Equal(t, "govorilka.ru", originHost("https://govorilka.ru/admin?x=1"))
	assert.Equal(t, "localhost:3000", originHost("localhost:3000"))
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"govorilka.ru", "*.govorilka.ru", "localhost:*"}

	assert.True(t, originAllowed(patterns, "govorilka.ru"))
	assert.True(t, originAllowed(patterns, "admin.govorilka.ru"))
	assert.True(t, originAllowed(patterns, "localhost:5173"))

	assert.False(t, originAllowed(patterns, "evil.ru"))
	assert.False(t, originAllowed(patterns, "govorilka.ru.evil.ru"))
	assert.False(t, originAllowed(nil, "govorilka.ru"))
}
