// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/ghastnet/ghastd/dagconfig"
	"github.com/ghastnet/ghastd/logger"
	"github.com/ghastnet/ghastd/version"
)

const (
	defaultConfigFilename = "ghastd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"

	// DefaultLogFilename is the file all subsystems log to under the log
	// directory.
	DefaultLogFilename = "ghastd.log"
)

var (
	// DefaultHomeDir is the default home directory for ghastd.
	DefaultHomeDir = defaultHomeDir()

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

// Flags defines the configuration options for ghastd.
//
// See LoadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir     string `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {debug, info, warn, error}"`
	NoPersist   bool   `long:"nopersist" description:"Run with an in-memory DAG and no block store"`
	Simnet      bool   `long:"simnet" description:"Use the simulation test network"`
}

// Config defines the configuration options for ghastd.
//
// See LoadConfig for details on the configuration load process.
type Config struct {
	*Flags
}

// NetParams returns the parameters of the network the configuration selects.
func (c *Config) NetParams() *dagconfig.Params {
	if c.Simnet {
		return &dagconfig.SimnetParams
	}
	return &dagconfig.MainnetParams
}

// defaultFlags returns the Flags populated with every default value.
func defaultFlags() *Flags {
	return &Flags{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		DebugLevel: defaultLogLevel,
	}
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func LoadConfig() (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file was specified or the version flag was used.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(cfgFlags, flags.Default)
	err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		// A missing config file at the default location is fine; one
		// the user asked for explicitly is not.
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, errors.Wrapf(err, "could not read config file %s", preCfg.ConfigFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, err
	}

	cfg := &Config{Flags: cfgFlags}
	if !logger.ValidLogLevel(cfg.DebugLevel) {
		return nil, errors.Errorf("the specified debug level %q is invalid", cfg.DebugLevel)
	}

	// All data and logs are network-scoped so networks never mix.
	netName := cfg.NetParams().Name
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), netName)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), netName)

	return cfg, nil
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		path = strings.Replace(path, "~", filepath.Dir(DefaultHomeDir), 1)
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// defaultHomeDir returns an OS-appropriate hidden application directory in
// the user's home directory, falling back to the working directory when no
// home directory can be determined.
func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ghastd")
}
