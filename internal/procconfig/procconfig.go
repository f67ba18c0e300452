// Package procconfig loads the static, process-level configuration for
// the inaira decoder: listen addresses, the camera index to open at
// startup, the default model path, and logging and FITS-dump settings.
// The dynamic ParamContainer-backed camera configuration is not part of
// it. It follows cmd/multiserver's koanf wiring: a struct of
// defaults layered with an optional YAML file on disk, reloaded on
// write via koanf's fsnotify-backed file watch.
package procconfig

import (
	"log"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config is the static process configuration, distinct from the dynamic,
// control-channel-mutable CameraConfig of package pco.
type Config struct {
	// CameraIndex selects which camera/grabber pair to open at startup.
	CameraIndex int `koanf:"camera_index"`

	// CtrlChannelAddr is the ZMQ REP bind address for the control channel.
	CtrlChannelAddr string `koanf:"ctrl_channel_addr"`

	// AdminHTTPAddr is the bind address for the read-only HTTP admin mux.
	AdminHTTPAddr string `koanf:"admin_http_addr"`

	// ResultSocketAddr is the default ZMQ PUB bind address for processor
	// results, used before a client configures result_socket_addr.
	ResultSocketAddr string `koanf:"result_socket_addr"`

	// ModelPath is the default path to the ML model loaded by the processor.
	ModelPath string `koanf:"model_path"`

	// LogFile is the path for rotated logs; empty disables rotation.
	LogFile string `koanf:"log_file"`

	// DumpFits enables the processor's optional per-frame FITS dump.
	DumpFits bool `koanf:"dump_fits"`

	// FramesDir is the root folder FITS dumps are written under, when
	// DumpFits is enabled.
	FramesDir string `koanf:"frames_dir"`
}

// Default returns the built-in defaults, used as the base layer before
// any file on disk is applied.
func Default() Config {
	return Config{
		CameraIndex:      0,
		CtrlChannelAddr:  "tcp://*:10000",
		AdminHTTPAddr:    ":8080",
		ResultSocketAddr: "tcp://*:10001",
		ModelPath:        "",
		LogFile:          "",
		DumpFits:         false,
		FramesDir:        "./frames",
	}
}

// Loader loads Config from a YAML file on top of Default, and can watch
// the file for changes.
type Loader struct {
	k        *koanf.Koanf
	path     string
	onChange func(Config)
	logger   *log.Logger
}

// NewLoader constructs a Loader for the YAML file at path. The file need
// not exist; a missing file just leaves the defaults in place, mirroring
// cmd/multiserver's tolerant handling of a missing multiserver.yml.
func NewLoader(path string, logger *log.Logger) (*Loader, error) {
	l := &Loader{k: koanf.New("."), path: path, logger: logger}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) load() error {
	if err := l.k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return err
	}
	if err := l.k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return err
		}
	}
	return nil
}

// Config returns the currently loaded configuration.
func (l *Loader) Config() Config {
	cfg := Default()
	if err := l.k.Unmarshal("", &cfg); err != nil && l.logger != nil {
		l.logger.Printf("procconfig: unmarshal failed, using prior config: %v", err)
	}
	return cfg
}

// Watch reloads the file whenever it changes on disk and invokes cb with
// the newly merged configuration. Backed by koanf's file.Provider.Watch,
// which uses fsnotify internally.
func (l *Loader) Watch(cb func(Config)) error {
	l.onChange = cb
	provider := file.Provider(l.path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			if l.logger != nil {
				l.logger.Printf("procconfig: watch error: %v", err)
			}
			return
		}
		if loadErr := l.load(); loadErr != nil {
			if l.logger != nil {
				l.logger.Printf("procconfig: reload failed: %v", loadErr)
			}
			return
		}
		if l.onChange != nil {
			l.onChange(l.Config())
		}
	})
}
