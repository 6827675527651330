package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/Ankitjha21/zksync-era/ethsender"
	"github.com/Ankitjha21/zksync-era/etherman"
	"github.com/Ankitjha21/zksync-era/gasprice"
	"github.com/Ankitjha21/zksync-era/log"
	"github.com/Ankitjha21/zksync-era/sequencer"
	"github.com/mitchellh/mapstructure"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

const (
	// FlagCfg is the flag for cfg.
	FlagCfg = "cfg"
	// FlagComponents is the flag for components.
	FlagComponents = "components"
	// FlagSaveConfigPath is the flag to save the final configuration file
	FlagSaveConfigPath = "save-config-path"

	EnvVarPrefix       = "ZKSYNC"
	ConfigType         = "toml"
	SaveConfigFileName = "zksync_config.toml"

	DefaultCreationFilePermissions = os.FileMode(0600)
)

// Config represents the configuration of the entire node. The file is TOML
// format; user files override the embedded defaults field by field.
type Config struct {
	// Configure log level for all the services, allow also to store the logs in a file
	Log log.Config
	// Configuration of the etherman (client for access L1)
	Etherman etherman.Config
	// Configuration of the sequencer (resource accounting and batch sealing)
	Sequencer sequencer.Config
	// Configuration of the L1 gas price adjuster
	GasAdjuster gasprice.Config
	// Configuration of the batch aggregator and L1 sender
	EthSender ethsender.Config
}

// Validate checks the configuration of every component
func (c *Config) Validate() error {
	if err := c.Sequencer.Validate(); err != nil {
		return fmt.Errorf("invalid Sequencer config: %w", err)
	}
	if err := c.GasAdjuster.Validate(); err != nil {
		return fmt.Errorf("invalid GasAdjuster config: %w", err)
	}
	if err := c.EthSender.Validate(); err != nil {
		return fmt.Errorf("invalid EthSender config: %w", err)
	}
	return nil
}

// Load loads the configuration from the files given on the command line
func Load(ctx *cli.Context) (*Config, error) {
	configFilePath := ctx.StringSlice(FlagCfg)
	filesData, err := readFiles(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading files. Err: %w", err)
	}
	saveConfigPath := ctx.String(FlagSaveConfigPath)
	return LoadFiles(filesData, saveConfigPath)
}

// LoadFiles renders the defaults plus the given files into a single TOML
// document and unmarshals it
func LoadFiles(files []FileData, saveConfigPath string) (*Config, error) {
	fileData := make([]FileData, 0, len(files)+2)
	fileData = append(fileData, FileData{Name: "default_vars", Content: DefaultVars})
	fileData = append(fileData, FileData{Name: "default_values", Content: DefaultValues})
	fileData = append(fileData, files...)

	renderedCfg, err := NewConfigRender(fileData, EnvVarPrefix).Render()
	if err != nil {
		return nil, err
	}
	if saveConfigPath != "" {
		fullPath := saveConfigPath + "/" + SaveConfigFileName
		if err := os.WriteFile(fullPath, []byte(renderedCfg), DefaultCreationFilePermissions); err != nil {
			err = fmt.Errorf("error writing config file: %s. Err: %w", fullPath, err)
			log.Error(err)
			return nil, err
		}
	}
	return LoadFileFromString(renderedCfg, ConfigType)
}

// LoadFileFromString loads the configuration from an already rendered string
func LoadFileFromString(configFileData string, configType string) (*Config, error) {
	cfg := &Config{}
	expectedKeys := viper.AllKeys()
	if err := loadString(cfg, configFileData, configType, EnvVarPrefix, &expectedKeys); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfigToString renders the effective configuration back to TOML
func SaveConfigToString(cfg Config) (string, error) {
	b, err := toml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readFiles(files []string) ([]FileData, error) {
	result := make([]FileData, 0, len(files))
	for _, file := range files {
		fileContent, err := readFileToString(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %s. Err: %w", file, err)
		}
		fileExtension := getFileExtension(file)
		if fileExtension != ConfigType {
			fileContent, err = convertFileToToml(fileContent, fileExtension)
			if err != nil {
				return nil, fmt.Errorf("error converting file: %s from %s to TOML. Err: %w", file, fileExtension, err)
			}
		}
		result = append(result, FileData{Name: file, Content: fileContent})
	}
	return result, nil
}

func getFileExtension(fileName string) string {
	return fileName[strings.LastIndex(fileName, ".")+1:]
}

func loadString(cfg *Config, configData string, configType string,
	envPrefix string, expectedKeys *[]string) error {
	viper.SetConfigType(configType)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadConfig(bytes.NewBuffer([]byte(configData))); err != nil {
		return err
	}
	decodeHooks := []viper.DecoderConfigOption{
		// this allows arrays to be decoded from env var separated by ",", example: MY_VAR="value1,value2,value3"
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(), mapstructure.StringToSliceHookFunc(","))),
	}
	if err := viper.Unmarshal(&cfg, decodeHooks...); err != nil {
		return err
	}

	if expectedKeys != nil {
		for _, field := range getUnexpectedFields(viper.AllKeys(), *expectedKeys) {
			log.Debugf("field %s in config file doesnt have a default value", field)
		}
	}
	return nil
}

func getUnexpectedFields(keysOnFile, expectedConfigKeys []string) []string {
	wrongFields := make([]string, 0)
	for _, key := range keysOnFile {
		if !containsString(expectedConfigKeys, key) {
			wrongFields = append(wrongFields, key)
		}
	}
	return wrongFields
}
