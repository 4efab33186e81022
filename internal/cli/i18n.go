package cli

import (
	"os"

	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

var i18n *logger.Logger

// initI18n runs before flags are parsed, so the help language comes from
// LXCFERRY_LANGUAGE rather than --language.
func initI18n() {
	i18n = logger.NewWithConfig(&types.Config{
		Settings: types.SettingsConfig{
			Language: os.Getenv("LXCFERRY_LANGUAGE"),
			LogLevel: "disabled",
		},
	})
}

func getMessage(key string) string {
	if i18n == nil {
		initI18n()
	}
	return i18n.GetMessage(key)
}
