package cmd

import (
	"github.com/spf13/pflag"
	jww "github.com/spf13/jwalterweatherman"
)

// bindFlag ties a flag to a viper key; a flag set on the command line wins
// over the environment and the config file.
func bindFlag(key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		jww.FATAL.Panicf("bind flag %s: %v", key, err)
	}
}
