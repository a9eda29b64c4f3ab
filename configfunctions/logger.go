package configfunctions

import (
	"io"
	"strings"

	"github.com/gologme/log"
	"github.com/spf13/viper"
)

const DefaultLogLevel = "info,warn,error"

// NewLogger returns a logger writing to out with the comma separated levels
// enabled.
func NewLogger(out io.Writer, levels string) *log.Logger {
	logger := log.New(out, "", log.Flags())
	for _, level := range strings.Split(levels, ",") {
		if level = strings.TrimSpace(level); level != "" {
			logger.EnableLevel(level)
		}
	}
	return logger
}

// AppSettings is the [app] section of config.toml.
type AppSettings struct {
	LogLevel        string
	Overlay         bool
	OperatorKeyFile string
}

func LoadAppSettings(v *viper.Viper) AppSettings {
	v.SetDefault("app.log_level", DefaultLogLevel)
	v.SetDefault("app.overlay", true)
	v.SetDefault("app.operator_key_file", "config/operator.key")
	return AppSettings{
		LogLevel:        v.GetString("app.log_level"),
		Overlay:         v.GetBool("app.overlay"),
		OperatorKeyFile: v.GetString("app.operator_key_file"),
	}
}
