package localization_test

import (
	"testing"
	"testing/fstest"

	"travelmate/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_LoadsEmbeddedLocales(t *testing.T) {
	l, err := localization.Default()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en", "uk"}, l.Languages())
	assert.Equal(t, "✅ Olena accepted your request. Say hi!",
		l.Format("en", "request_accepted", map[string]string{"name": "Olena"}))
	assert.Contains(t, l.Format("uk", "message_new_gathering", map[string]string{
		"name": "Olena", "room": "Hike", "preview": "hi",
	}), "у Hike")
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json":    {Data: []byte(`{"greeting":"Hello","only_en":"English only"}`)},
		"uk.json":    {Data: []byte(`{"greeting":"Привіт"}`)},
		"README.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys)
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("uk", "greeting"))
	assert.Equal(t, "English only", l.GetString("uk", "only_en"))
	assert.Equal(t, "Hello", l.GetString("de", "greeting"))
	assert.Equal(t, "missing", l.GetString("en", "missing"))
}

func TestNewLocalizer_InvalidJSON(t *testing.T) {
	_, err := localization.NewLocalizer(fstest.MapFS{"en.json": {Data: []byte("{")}})
	assert.ErrorContains(t, err, "en.json")
}
