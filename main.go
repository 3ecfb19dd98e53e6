// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/USA-RedDragon/configulator"
	"github.com/lnxusr1/kenzy/cmd"
	"github.com/lnxusr1/kenzy/internal/config"
	"github.com/lnxusr1/kenzy/internal/version"
)

func main() {
	rootCmd := cmd.NewCommand(version.Version, version.GitCommit)

	c := configulator.New[config.Config]().
		WithEnvironmentVariables(&configulator.EnvironmentVariableOptions{
			Separator: "__",
		}).
		WithFile(&configulator.FileOptions{
			Paths: configPaths(),
		})

	rootCmd.SetContext(c.WithContext(context.Background()))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPaths lists candidate config files: an explicit -c/--config
// argument wins, then the working directory, then the user default.
func configPaths() []string {
	var paths []string
	args := os.Args[1:]
	for i, arg := range args {
		if (arg == "-c" || arg == "--config") && i+1 < len(args) {
			paths = append(paths, args[i+1])
		}
	}
	paths = append(paths, "config.yml")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".kenzy", "config.yml"))
	}
	return paths
}
