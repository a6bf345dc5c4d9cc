package main

import (
	"flag"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()
	os.Args = []string{"cmd", "--config=/etc/bullscope.yaml", "--verbose=true"}

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	cfgPath, verbose := parseFlags()
	assert.Equal(t, "/etc/bullscope.yaml", cfgPath)
	assert.True(t, verbose)
}

func TestParseFlagsDefaults(t *testing.T) {
	originalArgs := os.Args
	defer func() { os.Args = originalArgs }()
	os.Args = []string{"cmd"}

	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

	cfgPath, verbose := parseFlags()
	assert.Equal(t, "./config.yaml", cfgPath)
	assert.False(t, verbose)
}
