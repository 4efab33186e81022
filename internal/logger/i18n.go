package logger

import (
	"embed"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

const fallbackLanguage = "en-US"

type LocaleMessages struct {
	Messages map[string]string `yaml:"messages"`
}

var (
	fallbackOnce sync.Once
	fallback     map[string]string
)

// loadLocaleMessages resolves a language to its message table. A file in
// ~/.lxcferry/locales overrides the embedded table key by key.
func loadLocaleMessages(language string) map[string]string {
	messages := embeddedMessages(language)
	if messages == nil {
		messages = fallbackMessages()
	}

	overrides := userMessages(language)
	if len(overrides) == 0 {
		return messages
	}

	merged := make(map[string]string, len(messages)+len(overrides))
	for k, v := range messages {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func fallbackMessages() map[string]string {
	fallbackOnce.Do(func() {
		fallback = embeddedMessages(fallbackLanguage)
		if fallback == nil {
			fallback = map[string]string{}
		}
	})
	return fallback
}

func embeddedMessages(language string) map[string]string {
	name := canonicalLanguage(language)
	if name == "" {
		return nil
	}

	data, err := embeddedLocales.ReadFile("locales/" + name + ".yaml")
	if err != nil {
		return nil
	}
	return parseLocale(data)
}

func userMessages(language string) map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(home, ".lxcferry", "locales", language+".yaml"))
	if err != nil {
		return nil
	}
	return parseLocale(data)
}

func parseLocale(data []byte) map[string]string {
	var locale LocaleMessages
	if err := yaml.Unmarshal(data, &locale); err != nil {
		return nil
	}
	return locale.Messages
}

func canonicalLanguage(language string) string {
	switch strings.ToLower(language) {
	case "pt-br", "pt":
		return "pt-BR"
	case "es-es", "es":
		return "es-ES"
	case "en-us", "en":
		return "en-US"
	default:
		return ""
	}
}
