// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first: struct defaults, a YAML file,
// DOGPAY_* environment variables, then an explicit map (command-line
// flags). A Watcher reports writes to the config file so long-running
// commands can pick up changes.
package confloader
