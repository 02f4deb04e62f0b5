package bulk

import (
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"
)

const defaultInputBatchSize = 100

// Declaration is a parsed endpoint declaration (an ".api" document).
type Declaration struct {
	APIPath        string
	FunctionName   string
	Endpoint       string
	InputBatchSize int
	Raw            []byte
}

// ParseDeclaration reads the declaration stored under apiPath.
// When "endpoint" is absent the module sits next to the declaration and is named after "functionName".
func ParseDeclaration(apiPath string, raw []byte) (*Declaration, error) {
	if !gjson.ValidBytes(raw) {
		return nil, xerrors.Errorf("declaration %q is not valid JSON", apiPath)
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return nil, xerrors.Errorf("declaration %q must be a JSON object", apiPath)
	}

	result := &Declaration{
		APIPath:        apiPath,
		FunctionName:   parsed.Get("functionName").String(),
		Endpoint:       parsed.Get("endpoint").String(),
		InputBatchSize: defaultInputBatchSize,
		Raw:            raw,
	}
	if batchSize := parsed.Get(`\$bulk.inputBatchSize`); batchSize.Exists() {
		if batchSize.Int() <= 0 {
			return nil, xerrors.Errorf("declaration %q has invalid $bulk.inputBatchSize: %s", apiPath, batchSize.Raw)
		}
		result.InputBatchSize = int(batchSize.Int())
	}
	if result.Endpoint == "" {
		switch {
		case result.FunctionName != "":
			result.Endpoint = path.Join(path.Dir(apiPath), result.FunctionName+".sjs")
		case strings.HasSuffix(apiPath, ".api"):
			result.Endpoint = strings.TrimSuffix(apiPath, ".api") + ".sjs"
		default:
			return nil, xerrors.Errorf("declaration %q names neither endpoint nor functionName", apiPath)
		}
	}
	return result, nil
}

// BuiltinDeclaration is served by emulating backends for DefaultAPIPath when their module store lacks it.
func BuiltinDeclaration() *Declaration {
	return &Declaration{
		APIPath:        DefaultAPIPath,
		FunctionName:   "bulkIngester",
		Endpoint:       strings.TrimSuffix(DefaultAPIPath, ".api") + ".sjs",
		InputBatchSize: defaultInputBatchSize,
		Raw:            []byte(builtinDeclarationJSON),
	}
}

const builtinDeclarationJSON = `{
  "functionName": "bulkIngester",
  "endpoint": "/data-hub/5/data-services/ingestion/bulkIngester.sjs",
  "params": [
    {"name": "endpointState", "datatype": "jsonDocument", "multiple": false, "nullable": true},
    {"name": "workUnit", "datatype": "jsonDocument", "multiple": false, "nullable": true},
    {"name": "input", "datatype": "jsonDocument", "multiple": true, "nullable": true}
  ],
  "return": {"datatype": "jsonDocument", "nullable": true},
  "$bulk": {"inputBatchSize": 100}
}`
