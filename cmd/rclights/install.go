package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/kardianos/osext"

	"github.com/sweeney/rclights/internal/config"
)

// DefaultConfigPath is where install puts the config and where the unit
// points run.
const DefaultConfigPath = "/etc/rclights.toml"

const serviceFile = `[Unit]
Description=RC vehicle light controller
After=network-online.target

[Service]
ExecStart={{.BinPath}} run -c {{.ConfigFile}}
Restart=on-failure

[Install]
WantedBy=multi-user.target
`

var serviceTmpl = template.Must(template.New("service").Parse(serviceFile))

// install copies the running binary under prefix, writes a systemd unit and,
// unless one exists and reset is false, the default config.
func install(prefix, configPath string, reset bool) error {
	if prefix == "" {
		prefix = "/"
	}
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	self, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	binPath := filepath.Join(prefix, "usr/bin/rclights")
	if err := copyFile(self, binPath, 0o755); err != nil {
		return fmt.Errorf("install binary: %w", err)
	}

	unitPath := filepath.Join(prefix, "usr/lib/systemd/system/rclights.service")
	if err := writeFile(unitPath, 0o644, func(w io.Writer) error {
		return serviceTmpl.Execute(w, struct{ BinPath, ConfigFile string }{binPath, configPath})
	}); err != nil {
		return fmt.Errorf("install unit: %w", err)
	}

	dstConfig := filepath.Join(prefix, configPath)
	if _, err := os.Stat(dstConfig); err == nil && !reset {
		return nil
	}
	if err := writeFile(dstConfig, 0o644, func(w io.Writer) error {
		return config.Write(w, config.Default())
	}); err != nil {
		return fmt.Errorf("install config: %w", err)
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return writeFile(dst, perm, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

func writeFile(path string, perm os.FileMode, fill func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
