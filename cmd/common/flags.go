package common

// ConfigFlags supplies the root command's --config and --env values to
// subcommands at run time, after flag parsing.
type ConfigFlags func() (cfgFile, env string)
