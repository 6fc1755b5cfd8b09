package localization_test

import (
	"testing"
	"testing/fstest"

	"mychat/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalizer_Embedded(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en", "ru"}, l.Languages())
	assert.Equal(t, "У вас новое сообщение от пользователя Alice Smith",
		l.Format("ru", "new_message_notice", "Alice Smith"))
	assert.Equal(t, "You have a new message from bob", l.Format("en", "new_message_notice", "bob"))
}

func TestNewLocalizer_EveryLanguageHasEveryKey(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	keys := []string{"new_message_notice", "bot_welcome", "bot_linked", "bot_link_failed", "bot_not_registered", "bot_no_username", "bot_unknown_command"}
	for _, lang := range l.Languages() {
		for _, key := range keys {
			assert.NotEqual(t, key, l.GetString(lang, key), "%s is missing %s", lang, key)
		}
	}
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"en.json":   {Data: []byte(`{"greeting":"Hello","only_en":"English only"}`)},
		"uk.json":   {Data: []byte(`{"greeting":"Привіт"}`)},
		"README.md": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizerFS(fsys)
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("uk", "greeting"))
	assert.Equal(t, "English only", l.GetString("uk", "only_en"))
	assert.Equal(t, "Hello", l.GetString("de", "greeting"))
	assert.Equal(t, "missing_key", l.GetString("uk", "missing_key"))
}

func TestNewLocalizerFS_BadJSON(t *testing.T) {
	_, err := localization.NewLocalizerFS(fstest.MapFS{"en.json": {Data: []byte(`{`)}})
	assert.Error(t, err)
}
