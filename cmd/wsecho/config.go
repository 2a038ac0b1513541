package main

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sockwire/ws"
)

// config is the echo server configuration. Zero values are replaced by
// defaults in load.
type config struct {
	Listen           string        `yaml:"listen"`
	Strict           bool          `yaml:"strict"`
	Protocols        []string      `yaml:"protocols"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	ReadBufferSize   int           `yaml:"read_buffer_size"`
	MaxFrameSize     int64         `yaml:"max_frame_size"`
	MaxMessageSize   int64         `yaml:"max_message_size"`
	AcceptAnyMask    bool          `yaml:"accept_any_mask"`
}

var defaultConfig = config{
	Listen:           ":9001",
	HandshakeTimeout: 5 * time.Second,
	MaxMessageSize:   16 << 20,
}

// load reads YAML configuration from path. Empty path means defaults.
func load(path string) (config, error) {
	c := defaultConfig
	if path == "" {
		return c, nil
	}
	bts, err := os.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(bts, &c); err != nil {
		return c, errors.Wrapf(err, "parse config %q", path)
	}
	if c.Listen == "" {
		return c, errors.New("config: listen address is empty")
	}
	return c, nil
}

// wsConfig maps file configuration to connection options.
func (c config) wsConfig() ws.Config {
	wc := ws.Config{
		Upgrader: ws.Upgrader{
			Strict: c.Strict,
		},
		ReadBufferSize: c.ReadBufferSize,
		MaxFrameSize:   c.MaxFrameSize,
		MaxMessageSize: c.MaxMessageSize,
		AcceptAnyMask:  c.AcceptAnyMask,
	}
	if len(c.Protocols) > 0 {
		wc.Upgrader.Protocol = ws.SelectFromSlice(c.Protocols)
	}
	return wc
}
