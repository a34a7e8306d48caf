package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Args are command line arguments.
type Args struct {
	Port       string
	Password   string
	ConfigFile string
}

func getArgs() (Args, error) {
	configFile := flag.String("config", "", "Configuration file (optional).")

	flag.Parse()

	if flag.NArg() != 2 {
		flag.PrintDefaults()
		return Args{}, fmt.Errorf("usage: %s [-config <file>] <port> <password>",
			os.Args[0])
	}

	port := flag.Arg(0)
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 1 || portNum > 65535 {
		return Args{}, fmt.Errorf("invalid port: %s", port)
	}

	password := flag.Arg(1)
	if len(password) == 0 {
		return Args{}, fmt.Errorf("you must provide a password")
	}

	args := Args{Port: port, Password: password}

	if len(*configFile) > 0 {
		configPath, err := filepath.Abs(*configFile)
		if err != nil {
			return Args{}, fmt.Errorf(
				"unable to determine absolute path to config file: %s: %s",
				*configFile, err)
		}
		args.ConfigFile = configPath
	}

	return args, nil
}
