package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"labelpress/internal/label"
	"labelpress/internal/raster"
	"labelpress/internal/server"
	"labelpress/internal/template"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Couldn't start labelpress", "err", err)
		os.Exit(1)
	}
}

func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("labelpress")
	v.AutomaticEnv()

	v.SetDefault("server_address", ":8080")
	v.SetDefault("database_path", "labelpress.db")
	v.SetDefault("fonts_dir", "")
	v.SetDefault("web_dir", "web")
	v.SetDefault("log_level", "info")
	v.SetDefault("print_threshold", 128)
	v.SetDefault("print_alpha", "composite")
	v.SetDefault("bt_scan_seconds", 8)

	return v
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("Couldn't parse log level %q:\n%w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func rasterOptions(v *viper.Viper) (raster.Options, error) {
	opts := raster.DefaultOptions()

	threshold := v.GetInt("print_threshold")
	if threshold < 0 || threshold > 255 {
		return opts, fmt.Errorf("print threshold %d out of range 0-255", threshold)
	}
	opts.Threshold = uint8(threshold)

	switch strings.ToLower(v.GetString("print_alpha")) {
	case "composite":
		opts.Alpha = raster.AlphaComposite
	case "mask":
		opts.Alpha = raster.AlphaMask
	default:
		return opts, fmt.Errorf("unknown alpha mode %q", v.GetString("print_alpha"))
	}
	return opts, nil
}

func run() error {
	v := loadConfig()

	log, err := newLogger(v.GetString("log_level"))
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	rasterOpts, err := rasterOptions(v)
	if err != nil {
		return err
	}

	repo, err := template.OpenRepository(v.GetString("database_path"))
	if err != nil {
		return err
	}
	defer repo.Close()

	fonts, err := label.NewFonts()
	if err != nil {
		return fmt.Errorf("Couldn't load builtin fonts:\n%w", err)
	}
	if dir := v.GetString("fonts_dir"); dir != "" {
		if err := fonts.LoadDir(dir); err != nil {
			return fmt.Errorf("Couldn't load fonts from %s:\n%w", dir, err)
		}
	}

	s := server.New(server.Config{
		Log:        log,
		Templates:  repo,
		Fonts:      fonts,
		WebDir:     v.GetString("web_dir"),
		RasterOpts: rasterOpts,
		BTScanTime: time.Duration(v.GetInt("bt_scan_seconds")) * time.Second,
	})

	address := v.GetString("server_address")
	log.Info("starting labelpress",
		"address", address,
		"database", v.GetString("database_path"),
		"fonts", fonts.Names())
	return http.ListenAndServe(address, s.Routes())
}
