// Package web embeds the monitor dashboard.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// DevEnv names the variable that switches to serving the dashboard from the
// source tree, so the page can be edited without rebuilding.
const DevEnv = "KVSV_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// GetAssets returns the dashboard files.
func GetAssets() http.FileSystem {
	if dir, ok := sourceDir(); ok {
		log.Printf("Serving monitor assets from %s", dir)
		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() (string, bool) {
	dev, _ := strconv.ParseBool(os.Getenv(DevEnv))
	if !dev {
		return "", false
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		log.Panicf("cannot locate the source of package web")
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
