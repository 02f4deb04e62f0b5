package hub

import (
	"bytes"

	"github.com/doublecloud/hubwriter/pkg/bulk"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/doublecloud/hubwriter/pkg/util/jsonx"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
	"golang.org/x/xerrors"
)

const (
	apiPathField       = "apiPath"
	endpointStateField = "endpointState"
	workUnitField      = "workUnit"
	uriPrefixField     = "uriprefix"
	emptyObject        = "{}"
)

// EndpointParams is what a writer needs to open a bulk session.
type EndpointParams struct {
	APIPath       string
	EndpointState []byte
	WorkUnit      []byte
}

// ResolveEndpointParams builds the session parameters out of the ingestendpointparams and uriprefix options.
func ResolveEndpointParams(options Options, logger *zap.Logger) (*EndpointParams, error) {
	raw := []byte(options.GetOrDefault(IngestEndpointParamsKey, DefaultIngestEndpointParams))
	if err := validateObject(raw); err != nil {
		return nil, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s, cause: %w", IngestEndpointParamsKey, err)
	}
	params := gjson.ParseBytes(raw)

	apiPath := params.Get(apiPathField)
	hasAPIPath := apiPath.Exists() && apiPath.String() != ""
	workUnit := params.Get(workUnitField)
	endpointState := params.Get(endpointStateField)
	if !hasAPIPath && (workUnit.Exists() || endpointState.Exists()) {
		return nil, errors.CategorizedErrorf(categories.Configuration,
			"Cannot set workUnit or endpointState in ingestionendpointparams unless apiPath is defined as well.")
	}

	result := &EndpointParams{
		APIPath:       bulk.DefaultAPIPath,
		EndpointState: []byte(emptyObject),
		WorkUnit:      []byte(emptyObject),
	}
	if hasAPIPath {
		result.APIPath = apiPath.String()
	}

	if state := embeddedJSON(endpointState); state != nil {
		if err := validateJSON(state); err != nil {
			return nil, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s, cause: %w", endpointStateField, err)
		}
		result.EndpointState = state
	}

	if unit := embeddedJSON(workUnit); unit != nil {
		if err := validateObject(unit); err != nil {
			return nil, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s, cause: %w", workUnitField, err)
		}
		result.WorkUnit = unit
	}
	withPrefix, err := WithURIPrefix(result.WorkUnit, options.URIPrefix())
	if err != nil {
		return nil, errors.CategorizedErrorf(categories.Configuration, "Unable to set %s on %s, cause: %w", uriPrefixField, workUnitField, err)
	}
	result.WorkUnit = withPrefix

	logger.Info("Will write to endpoint defined by: "+result.APIPath, zap.String("api_path", result.APIPath))
	return result, nil
}

// WithURIPrefix returns a copy of workUnit with uriprefix set, workUnit itself is left untouched.
func WithURIPrefix(workUnit []byte, prefix string) ([]byte, error) {
	src := make([]byte, len(workUnit))
	copy(src, workUnit)
	return sjson.SetBytes(src, uriPrefixField, prefix)
}

// embeddedJSON accepts both a JSON-encoded string and an inline JSON value. Absent, null and empty values yield nil.
func embeddedJSON(value gjson.Result) []byte {
	switch value.Type {
	case gjson.Null:
		return nil
	case gjson.String:
		if value.Str == "" {
			return nil
		}
		return []byte(value.Str)
	default:
		return []byte(value.Raw)
	}
}

func validateJSON(raw []byte) error {
	var value any
	if err := jsonx.Unmarshal(raw, &value); err != nil {
		return err
	}
	if !gjson.ValidBytes(raw) {
		return xerrors.Errorf("unexpected data after the JSON value: %q", bytes.TrimSpace(raw))
	}
	return nil
}

func validateObject(raw []byte) error {
	if err := validateJSON(raw); err != nil {
		return err
	}
	if !gjson.ParseBytes(raw).IsObject() {
		return xerrors.Errorf("expected a JSON object, got %q", bytes.TrimSpace(raw))
	}
	return nil
}
