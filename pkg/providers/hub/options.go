package hub

import (
	"strings"

	"github.com/doublecloud/hubwriter/pkg/bulk/elastic"
	"github.com/doublecloud/hubwriter/pkg/bulk/marklogic"
	"github.com/doublecloud/hubwriter/pkg/bulk/mongo"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/spf13/cast"
)

const (
	BatchSizeKey            = "batchsize"
	IngestEndpointParamsKey = "ingestendpointparams"
	URIPrefixKey            = "uriprefix"
	BackendKey              = "backend"

	MLHostKey             = "mlhost"
	MLStagingPortKey      = "mlstagingport"
	MLUsernameKey         = "mlusername"
	MLPasswordKey         = "mlpassword"
	MLStagingAuthKey      = "mlstagingauth"
	MLModulesDBNameKey    = "mlmodulesdbname"
	MLStagingSimpleSSLKey = "mlstagingsimplessl"
	MLRetryCountKey       = "mlretrycount"

	MongoURIKey               = "mongouri"
	MongoDatabaseKey          = "mongodatabase"
	MongoCollectionKey        = "mongocollection"
	MongoModulesCollectionKey = "mongomodulescollection"

	ESAddressesKey    = "esaddresses"
	ESUsernameKey     = "esusername"
	ESPasswordKey     = "espassword"
	ESIndexKey        = "esindex"
	ESModulesIndexKey = "esmodulesindex"

	DefaultBatchSize            = 100
	DefaultIngestEndpointParams = "{}"
)

type Backend string

const (
	BackendMarkLogic Backend = "marklogic"
	BackendMongo     Backend = "mongo"
	BackendElastic   Backend = "elastic"
)

// Options are the writer options with case-insensitive keys.
type Options map[string]string

func NewOptions(raw map[string]string) Options {
	result := make(Options, len(raw))
	for k, v := range raw {
		result[strings.ToLower(k)] = v
	}
	return result
}

func (o Options) Get(key string) (string, bool) {
	v, ok := o[strings.ToLower(key)]
	return v, ok
}

// GetOrDefault treats an empty value as absent.
func (o Options) GetOrDefault(key, def string) string {
	if v, ok := o.Get(key); ok && v != "" {
		return v
	}
	return def
}

func (o Options) BatchSize() (int, error) {
	raw, ok := o.Get(BatchSizeKey)
	if !ok {
		return DefaultBatchSize, nil
	}
	size, err := cast.ToIntE(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s %q, cause: %w", BatchSizeKey, raw, err)
	}
	if size <= 0 {
		return 0, errors.CategorizedErrorf(categories.Configuration, "%s must be a positive integer, got %d", BatchSizeKey, size)
	}
	return size, nil
}

func (o Options) URIPrefix() string {
	v, _ := o.Get(URIPrefixKey)
	return v
}

func (o Options) Backend() (Backend, error) {
	switch b := Backend(strings.ToLower(o.GetOrDefault(BackendKey, string(BackendMarkLogic)))); b {
	case BackendMarkLogic, BackendMongo, BackendElastic:
		return b, nil
	default:
		return "", errors.CategorizedErrorf(categories.Configuration, "unknown %s %q, expected one of marklogic, mongo, elastic", BackendKey, b)
	}
}

func (o Options) intOption(key string, def int) (int, error) {
	raw := o.GetOrDefault(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return 0, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s %q, cause: %w", key, raw, err)
	}
	return v, nil
}

func (o Options) boolOption(key string) (bool, error) {
	raw := o.GetOrDefault(key, "")
	if raw == "" {
		return false, nil
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return false, errors.CategorizedErrorf(categories.Configuration, "Unable to parse %s %q, cause: %w", key, raw, err)
	}
	return v, nil
}

func (o Options) MarkLogicConfig() (*marklogic.Config, error) {
	cfg := marklogic.DefaultConfig()
	cfg.Host = o.GetOrDefault(MLHostKey, marklogic.DefaultHost)
	cfg.Username = o.GetOrDefault(MLUsernameKey, "")
	cfg.Password = o.GetOrDefault(MLPasswordKey, "")
	cfg.Auth = marklogic.AuthType(strings.ToLower(o.GetOrDefault(MLStagingAuthKey, string(marklogic.AuthDigest))))
	cfg.ModulesDatabase = o.GetOrDefault(MLModulesDBNameKey, marklogic.DefaultModulesDatabase)

	var err error
	if cfg.Port, err = o.intOption(MLStagingPortKey, marklogic.DefaultStagingPort); err != nil {
		return nil, err
	}
	if cfg.RetryCount, err = o.intOption(MLRetryCountKey, marklogic.DefaultRetryCount); err != nil {
		return nil, err
	}
	if cfg.SimpleSSL, err = o.boolOption(MLStagingSimpleSSLKey); err != nil {
		return nil, err
	}
	cfg.Timeout = marklogic.DefaultTimeout
	cfg.RetryInterval = marklogic.DefaultRetryInterval
	if err := cfg.Validate(); err != nil {
		return nil, errors.CategorizedErrorf(categories.Configuration, "invalid marklogic connection options: %w", err)
	}
	return cfg, nil
}

func (o Options) MongoConfig() (*mongo.Config, error) {
	cfg := &mongo.Config{
		URI:               o.GetOrDefault(MongoURIKey, ""),
		Database:          o.GetOrDefault(MongoDatabaseKey, ""),
		Collection:        o.GetOrDefault(MongoCollectionKey, ""),
		ModulesCollection: o.GetOrDefault(MongoModulesCollectionKey, mongo.DefaultModulesCollection),
	}
	if cfg.URI == "" {
		return nil, errors.CategorizedErrorf(categories.Configuration, "%s is required for the mongo backend", MongoURIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.CategorizedErrorf(categories.Configuration, "invalid mongo connection options: %w", err)
	}
	return cfg, nil
}

func (o Options) ElasticConfig() (*elastic.Config, error) {
	var addresses []string
	for _, addr := range strings.Split(o.GetOrDefault(ESAddressesKey, ""), ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addresses = append(addresses, addr)
		}
	}
	cfg := &elastic.Config{
		Addresses:    addresses,
		Username:     o.GetOrDefault(ESUsernameKey, ""),
		Password:     o.GetOrDefault(ESPasswordKey, ""),
		Index:        o.GetOrDefault(ESIndexKey, ""),
		ModulesIndex: o.GetOrDefault(ESModulesIndexKey, elastic.DefaultModulesIndex),
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.CategorizedErrorf(categories.Configuration, "invalid elastic connection options: %w", err)
	}
	return cfg, nil
}
