// Package web serves the dashboard of the monitoring server.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// DevModeEnv names the variable that makes the dashboard load from the
// source tree instead of the embedded copy, so that edits to dist show up
// without rebuilding. It can also be set in a .env file in the working
// directory.
const DevModeEnv = "SEQUENCE_MONITOR_DEV"

//go:embed dist/*
var dashboard embed.FS

// GetAssets returns the files of the dashboard.
func GetAssets() http.FileSystem {
	if devMode() {
		dir := sourceDir()
		fmt.Fprintf(os.Stderr, "Serving the dashboard from %s\n", dir)

		return http.Dir(dir)
	}

	dist, err := fs.Sub(dashboard, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(dist)
}

func sourceDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		panic("cannot locate the dashboard source")
	}

	return filepath.Join(filepath.Dir(file), "dist")
}

// devMode reads DevModeEnv from the environment first and from .env second.
func devMode() bool {
	value, ok := os.LookupEnv(DevModeEnv)
	if !ok {
		env, err := godotenv.Read()
		if err != nil {
			return false
		}

		value = env[DevModeEnv]
	}

	on, err := strconv.ParseBool(value)

	return err == nil && on
}
