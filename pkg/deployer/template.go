package deployer

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/aymerick/raymond"
	"github.com/ghodss/yaml"
)

type TemplateVariables map[string]any

func templateVariables(name, repo, sessionID string) TemplateVariables {
	return TemplateVariables{
		"name":      name,
		"repo":      repo,
		"sessionId": sessionID,
	}
}

// Templates renders the public URL and additional config vars of a bot.
type Templates struct {
	url        *raymond.Template
	configVars map[string]*raymond.Template
}

func NewTemplates(urlTemplate, configVarsFile string) (*Templates, error) {
	if len(urlTemplate) == 0 {
		urlTemplate = DefaultURLTemplate
	}
	url, err := raymond.Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse URL template: %s", err)
	}

	t := &Templates{
		url:        url,
		configVars: make(map[string]*raymond.Template),
	}

	if len(configVarsFile) == 0 {
		return t, nil
	}

	vars, err := configVarsFromFile(configVarsFile)
	if err != nil {
		return nil, err
	}
	for key, value := range vars {
		tpl, err := raymond.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("%s: parse template for '%s': %s", configVarsFile, key, err)
		}
		t.configVars[key] = tpl
	}

	return t, nil
}

func configVarsFromFile(path string) (map[string]string, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open file: %s", path, err)
	}

	doc := make(map[string]any)
	err = yaml.Unmarshal(file, &doc)
	if err != nil {
		errMsg := strings.ReplaceAll(err.Error(), "\n", ": ")
		return nil, fmt.Errorf("%s: %s", path, errMsg)
	}

	vars := make(map[string]string, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%s: config var '%s' must be a scalar", path, key)
		case nil:
			vars[key] = ""
		case float64:
			vars[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			vars[key] = fmt.Sprint(v)
		}
	}

	return vars, nil
}

func (t *Templates) URL(name string) (string, error) {
	output, err := t.url.Exec(TemplateVariables{"name": name})
	if err != nil {
		return "", fmt.Errorf("execute URL template: %s", err)
	}
	return output, nil
}

// ConfigVars renders the templated config vars, in key order.
func (t *Templates) ConfigVars(variables TemplateVariables) (map[string]string, error) {
	keys := make([]string, 0, len(t.configVars))
	for key := range t.configVars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	vars := make(map[string]string, len(keys))
	for _, key := range keys {
		output, err := t.configVars[key].Exec(variables)
		if err != nil {
			return nil, fmt.Errorf("execute template for config var '%s': %s", key, err)
		}
		vars[key] = output
	}

	return vars, nil
}
