package config

import (
	"bytes"
	_ "embed"
	"path/filepath"
	"strings"
	"text/template"

	cmtos "github.com/cometbft/cometbft/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

// RenderConfig renders config with the config.toml template.
func RenderConfig(config *Config) ([]byte, error) {
	var buffer bytes.Buffer
	if err := configTemplate.Execute(&buffer, config); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// WriteConfigFile renders config using the template and writes it to configFilePath.
func WriteConfigFile(configFilePath string, config *Config) error {
	dat, err := RenderConfig(config)
	if err != nil {
		return err
	}
	if err = cmtos.EnsureDir(filepath.Dir(configFilePath), DefaultDirPerm); err != nil {
		return err
	}
	cmtos.MustWriteFile(configFilePath, dat, 0o644)
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go.
//
//go:embed config.toml.tpl
var defaultConfigTemplate string
