package config

import (
	"os"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
	sig_yaml "sigs.k8s.io/yaml"
)

func WriteJobFromYaml(path string) (*WriteJob, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("unable to read yaml config file: %w", err)
	}
	job, err := ParseWriteJob(raw)
	if err != nil {
		return nil, xerrors.Errorf("unable to parse yaml config %s: %w", path, err)
	}
	return job, nil
}

func ParseWriteJob(raw []byte) (*WriteJob, error) {
	var view WriteJobYamlView
	if err := yaml.Unmarshal(raw, &view); err != nil {
		return nil, xerrors.Errorf("unable to parse yaml: %w", err)
	}
	options, err := flattenOptions(substituteEnv(view.Options).(map[string]interface{}))
	if err != nil {
		return nil, xerrors.Errorf("unable to parse options: %w", err)
	}
	schema, err := view.TableSchema()
	if err != nil {
		return nil, xerrors.Errorf("unable to parse schema: %w", err)
	}
	return &WriteJob{
		Options: options,
		Schema:  schema,
	}, nil
}

// flattenOptions turns option values into strings: scalars are stringified, mappings and lists become JSON text.
func flattenOptions(raw map[string]interface{}) (map[string]string, error) {
	prepared := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			data, err := yaml.Marshal(value)
			if err != nil {
				return nil, xerrors.Errorf("unable to marshal option %q: %w", key, err)
			}
			asJSON, err := sig_yaml.YAMLToJSON(data)
			if err != nil {
				return nil, xerrors.Errorf("unable to convert option %q to json: %w", key, err)
			}
			prepared[key] = string(asJSON)
		case nil:
			prepared[key] = ""
		case bool:
			prepared[key] = strconv.FormatBool(value.(bool))
		default:
			prepared[key] = value
		}
	}

	var result map[string]string
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to prepare decoder: %w", err)
	}
	if err := decoder.Decode(prepared); err != nil {
		return nil, xerrors.Errorf("failed to decode: %w", err)
	}
	return result, nil
}

// substituteEnv recursively iterates over an interface{} (which might be a string,
// a map, or a slice) and applies os.ExpandEnv to all string values.
func substituteEnv(val interface{}) interface{} {
	switch v := val.(type) {
	case string:
		return os.ExpandEnv(v)
	case map[string]interface{}:
		if v == nil {
			return map[string]interface{}{}
		}
		for key, inner := range v {
			v[key] = substituteEnv(inner)
		}
		return v
	case []interface{}:
		for i, inner := range v {
			v[i] = substituteEnv(inner)
		}
		return v
	default:
		return v
	}
}
