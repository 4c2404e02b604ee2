package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// addServeFlags registers the server and store overrides on fs. Defaults are
// left to config.SetDefaults so an unset flag never masks the config file.
func addServeFlags(fs *pflag.FlagSet) {
	fs.StringP("host", "H", "localhost", "Host to bind to")
	fs.IntP("port", "p", 8080, "Port to serve on")
	fs.String("store-driver", "mongo", "Document store (mongo, sqlite, memory)")
	fs.String("store-uri", "mongodb://localhost:27017", "MongoDB connection string")
	fs.String("store-database", "plantsDatabase", "MongoDB database name")
	fs.String("store-path", "plantlog.db", "SQLite database file")
	fs.String("templates-dir", "", "Load templates from this directory instead of the embedded copy")
	fs.Bool("hot-reload", false, "Reload templates and connected browsers when template files change")
}

// serveFlagKeys maps configuration keys to the serve flags overriding them.
var serveFlagKeys = map[string]string{
	"server.host":            "host",
	"server.port":            "port",
	"store.driver":           "store-driver",
	"store.uri":              "store-uri",
	"store.database":         "store-database",
	"store.path":             "store-path",
	"templates.dir":          "templates-dir",
	"development.hot_reload": "hot-reload",
}

// bindFlags binds each configuration key to its flag in fs.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding --%s to %s: %w", name, key, err)
		}
	}
	return nil
}

func mustBind(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	if err := bindFlags(v, fs, keys); err != nil {
		panic(err)
	}
}
