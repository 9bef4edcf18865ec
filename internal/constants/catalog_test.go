package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveVoice(t *testing.T) {
	assert.Equal(t, "nova", ResolveVoice("nova", "echo"))
	assert.Equal(t, "echo", ResolveVoice("", "echo"))
	assert.Equal(t, DefaultVoice, ResolveVoice("robot", "also-unknown"))
}

func TestResolveLanguage(t *testing.T) {
	assert.Equal(t, "Spanish", ResolveLanguage("es", "fr").Name)
	assert.Equal(t, "UK", ResolveLanguage("en-GB", "").Region)
	assert.Equal(t, "fr", ResolveLanguage("xx", "fr").Code)
	assert.Equal(t, DefaultLanguage, ResolveLanguage("xx", "yy").Code)
}

func TestCatalogHasNoDuplicates(t *testing.T) {
	assert.Len(t, voicesByID, len(Voices))
	assert.Len(t, languagesByCode, len(Languages))
	assert.Len(t, Languages, 29)
}

func TestLookup(t *testing.T) {
	v, ok := LookupVoice("onyx")
	assert.True(t, ok)
	assert.Equal(t, "male", v.Gender)
	_, ok = LookupLanguage("tlh")
	assert.False(t, ok)
}
