// Package file stores migrato settings in a TOML file under the config
// directory (~/.migrato by default, or $MIGRATO_HOME).
package file
