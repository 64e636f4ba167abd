package util

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func GetEnvironmentVariables() map[string]string {
	environmentVariables := map[string]string{}

	for _, variable := range os.Environ() {
		pair := strings.SplitN(variable, "=", 2)
		if len(pair) != 2 {
			continue
		}

		environmentVariables[pair[0]] = pair[1]
	}

	return environmentVariables
}

// LoadConfigFile decodes the YAML file named by FIELDTRACK_CONFIG_FILE into out.
// A missing variable is not an error and leaves out untouched.
func LoadConfigFile(env map[string]string, out interface{}) error {
	path := env["FIELDTRACK_CONFIG_FILE"]
	if path == "" {
		return nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(contents, out)
}
