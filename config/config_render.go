package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/Ankitjha21/zksync-era/log"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/valyala/fasttemplate"
)

const (
	startTag = "{{"
	endTag   = "}}"
)

var (
	ErrCycleVars                 = fmt.Errorf("cycle vars")
	ErrMissingVars               = fmt.Errorf("missing vars")
	ErrUnsupportedConfigFileType = fmt.Errorf("unsupported config file type")
)

// FileData is one config file: defaults first, then the user files, each one
// overriding the previous ones
type FileData struct {
	Name    string
	Content string
}

// ConfigRender merges a list of TOML files and resolves the {{var}}
// indirections between them, looking up the environment first
type ConfigRender struct {
	FilesData []FileData
	// LookupEnvFunc resolves environment variables, typically os.LookupEnv
	LookupEnvFunc     func(key string) (string, bool)
	EnvironmentPrefix string
}

func NewConfigRender(filesData []FileData, environmentPrefix string) *ConfigRender {
	return &ConfigRender{
		FilesData:         filesData,
		LookupEnvFunc:     os.LookupEnv,
		EnvironmentPrefix: environmentPrefix,
	}
}

// Render merges all files and resolves all variables inside
func (c *ConfigRender) Render() (string, error) {
	mergedData, err := c.Merge()
	if err != nil {
		return "", fmt.Errorf("fail to merge files. Err: %w", err)
	}
	return c.ResolveVars(mergedData)
}

// Merge combines the files in order into a single TOML document. Unquoted
// vars (A = {{B}}) are temporarily quoted so the TOML parser accepts them.
func (c *ConfigRender) Merge() (string, error) {
	k := koanf.New(".")
	for _, data := range c.FilesData {
		dataToml := quoteBareVars(data.Content)
		if err := k.Load(rawbytes.Provider([]byte(dataToml)), toml.Parser()); err != nil {
			log.Errorf("error loading file %s. Err: %v. FileData: %v", data.Name, err, dataToml)
			return "", fmt.Errorf("fail to load converted template %s to toml. Err: %w", data.Name, err)
		}
	}
	marshaled, err := k.Marshal(toml.Parser())
	if err != nil {
		return "", fmt.Errorf("fail to marshal to toml. Err: %w", err)
	}
	return unquoteVars(string(marshaled)), nil
}

// ResolveVars substitutes every {{var}} with its defined value or the
// matching environment variable. A var that resolves to another var is a
// cycle candidate and gets a second resolution pass.
func (c *ConfigRender) ResolveVars(fullConfigData string) (string, error) {
	tpl, valuesDefined, err := c.readTemplateAndDefinedValues(fullConfigData)
	if err != nil {
		return "", err
	}

	rendered := c.executeTemplate(tpl, valuesDefined)
	rendered = removeTypeMarks(rendered)

	unresolved := c.unresolvedVars(tpl, valuesDefined)
	if len(unresolved) > 0 {
		return rendered, fmt.Errorf("missing vars: %v. Err: %w", unresolved, ErrMissingVars)
	}

	finalConfigData, err := c.resolveCycle(rendered)
	if err != nil {
		return fullConfigData, err
	}
	return finalConfigData, nil
}

// resolveCycle iterates the remaining vars. Each pass must shrink the pending
// set, otherwise the vars reference each other and cannot be resolved.
func (c *ConfigRender) resolveCycle(partialResolved string) (string, error) {
	tmpData := unquoteVars(partialResolved)
	pendingVars := c.vars(tmpData)
	if len(pendingVars) == 0 {
		return partialResolved, nil
	}
	log.Debugf("resolveCycle: pending vars: %v", pendingVars)

	previousData := tmpData
	for len(pendingVars) > 0 {
		previousVars := pendingVars
		tpl, valuesDefined, err := c.readTemplateAndDefinedValues(previousData)
		if err != nil {
			return "", fmt.Errorf("fail to read template in resolveCycle. Err: %w", err)
		}
		tmpData = unquoteVars(c.executeTemplate(tpl, valuesDefined))
		tmpData = removeTypeMarks(tmpData)

		pendingVars = c.vars(tmpData)
		if len(pendingVars) == len(previousVars) {
			return partialResolved, fmt.Errorf("not resolved cycle vars: %v. Err: %w", pendingVars, ErrCycleVars)
		}
		previousData = tmpData
	}
	return previousData, nil
}

func (c *ConfigRender) readTemplateAndDefinedValues(data string) (*fasttemplate.Template,
	map[string]interface{}, error) {
	tpl, err := fasttemplate.NewTemplate(data, startTag, endTag)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to load template. Err: %w", err)
	}
	out := quoteBareVars(data)
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(out)), toml.Parser()); err != nil {
		return nil, nil, fmt.Errorf("error parsing data. Content: %s. Err: %w", out, err)
	}
	return tpl, k.All(), nil
}

func (c *ConfigRender) executeTemplate(tpl *fasttemplate.Template,
	data map[string]interface{}) string {
	return tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := c.findTagInEnvironment(tag); ok {
			return w.Write([]byte(v))
		}
		if v, ok := data[tag]; ok {
			return w.Write([]byte(fmt.Sprintf("%v", v)))
		}
		// keep the template form so a later pass can resolve it
		return w.Write([]byte(startTag + tag + endTag))
	})
}

// unresolvedVars returns the vars in the template that are neither defined in
// data nor in the environment
func (c *ConfigRender) unresolvedVars(tpl *fasttemplate.Template,
	data map[string]interface{}) []string {
	var unresolved []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := c.findTagInEnvironment(tag); ok {
			return w.Write([]byte(v))
		}
		if _, ok := data[tag]; !ok && !containsString(unresolved, tag) {
			unresolved = append(unresolved, tag)
		}
		return w.Write([]byte(""))
	})
	return unresolved
}

// vars returns the tags still present in configData
func (c *ConfigRender) vars(configData string) []string {
	tpl, err := fasttemplate.NewTemplate(configData, startTag, endTag)
	if err != nil {
		return []string{}
	}
	var pending []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		pending = append(pending, tag)
		return w.Write([]byte(""))
	})
	return pending
}

func (c *ConfigRender) findTagInEnvironment(tag string) (string, bool) {
	envTag := c.EnvironmentPrefix + "_" + strings.ReplaceAll(tag, ".", "_")
	return c.LookupEnvFunc(envTag)
}

// quoteBareVars converts A = {{B}} into A = "{{B:int}}" so the TOML parser
// accepts it. The :int mark records that the value is unquoted on output.
func quoteBareVars(data string) string {
	re := regexp.MustCompile(`=\s*\{\{([^}:]+)\}\}`)
	return re.ReplaceAllString(data, `= "{{${1}:int}}"`)
}

func unquoteVars(data string) string {
	re := regexp.MustCompile(`=\s*\"\{\{([^}:]+):int\}\}\"`)
	return re.ReplaceAllString(data, `= {{${1}}}`)
}

func removeTypeMarks(data string) string {
	re := regexp.MustCompile(`\{\{([^}:]+):int\}\}`)
	return re.ReplaceAllString(data, `{{${1}}}`)
}

func containsString(values []string, search string) bool {
	for _, v := range values {
		if v == search {
			return true
		}
	}
	return false
}

func readFileToString(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// convertFileToToml renders a JSON config file as TOML so it can join the
// merge chain
func convertFileToToml(fileData string, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "json":
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider([]byte(fileData)), json.Parser()); err != nil {
			return fileData, fmt.Errorf("error loading json file. Err: %w", err)
		}
		tomlData, err := toml.Parser().Marshal(k.Raw())
		if err != nil {
			return fileData, fmt.Errorf("error converting json to toml. Err: %w", err)
		}
		return string(tomlData), nil
	case "yml", "yaml", "ini":
		return fileData, fmt.Errorf("cant convert from %s to TOML. Err: %w", fileType, ErrUnsupportedConfigFileType)
	default:
		log.Warnf("filetype %s unknown, assuming is a TOML file", fileType)
		return fileData, nil
	}
}
