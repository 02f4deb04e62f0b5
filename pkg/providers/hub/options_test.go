package hub

import (
	"testing"

	"github.com/doublecloud/hubwriter/pkg/bulk/marklogic"
	"github.com/doublecloud/hubwriter/pkg/errors"
	"github.com/doublecloud/hubwriter/pkg/errors/categories"
	"github.com/stretchr/testify/require"
)

func TestOptionsAreCaseInsensitive(t *testing.T) {
	options := NewOptions(map[string]string{"BatchSize": "7", "URIPREFIX": "/x"})
	size, err := options.BatchSize()
	require.NoError(t, err)
	require.Equal(t, 7, size)
	require.Equal(t, "/x", options.URIPrefix())

	v, ok := options.Get("batchSIZE")
	require.True(t, ok)
	require.Equal(t, "7", v)
}

func TestBatchSize(t *testing.T) {
	size, err := NewOptions(nil).BatchSize()
	require.NoError(t, err)
	require.Equal(t, DefaultBatchSize, size)

	for _, raw := range []string{"abc", "0", "-3", "1.5", ""} {
		_, err := NewOptions(map[string]string{BatchSizeKey: raw}).BatchSize()
		require.Error(t, err, raw)
		require.True(t, errors.IsCategory(err, categories.Configuration), raw)
	}
}

func TestBackend(t *testing.T) {
	backend, err := NewOptions(nil).Backend()
	require.NoError(t, err)
	require.Equal(t, BackendMarkLogic, backend)

	backend, err = NewOptions(map[string]string{BackendKey: "Mongo"}).Backend()
	require.NoError(t, err)
	require.Equal(t, BackendMongo, backend)

	_, err = NewOptions(map[string]string{BackendKey: "cassandra"}).Backend()
	require.Error(t, err)
	require.True(t, errors.IsCategory(err, categories.Configuration))
}

func TestMarkLogicConfig(t *testing.T) {
	cfg, err := NewOptions(map[string]string{
		MLUsernameKey:         "admin",
		MLPasswordKey:         "admin",
		MLStagingPortKey:      "8011",
		MLStagingSimpleSSLKey: "true",
		MLStagingAuthKey:      "BASIC",
	}).MarkLogicConfig()
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, 8011, cfg.Port)
	require.Equal(t, marklogic.AuthBasic, cfg.Auth)
	require.True(t, cfg.SimpleSSL)
	require.Equal(t, marklogic.DefaultModulesDatabase, cfg.ModulesDatabase)
	require.Equal(t, marklogic.DefaultRetryCount, cfg.RetryCount)

	_, err = NewOptions(map[string]string{MLUsernameKey: "admin", MLStagingPortKey: "port"}).MarkLogicConfig()
	require.True(t, errors.IsCategory(err, categories.Configuration))

	_, err = NewOptions(nil).MarkLogicConfig()
	require.True(t, errors.IsCategory(err, categories.Configuration), "digest auth needs a username")
}

func TestMongoConfig(t *testing.T) {
	cfg, err := NewOptions(map[string]string{
		MongoURIKey:        "mongodb://localhost:27017",
		MongoDatabaseKey:   "hub",
		MongoCollectionKey: "staging",
	}).MongoConfig()
	require.NoError(t, err)
	require.Equal(t, "modules", cfg.ModulesCollection)

	_, err = NewOptions(map[string]string{MongoDatabaseKey: "hub"}).MongoConfig()
	require.True(t, errors.IsCategory(err, categories.Configuration))
}

func TestElasticConfig(t *testing.T) {
	cfg, err := NewOptions(map[string]string{
		ESAddressesKey: "http://es-1:9200, http://es-2:9200,",
		ESIndexKey:     "staging",
	}).ElasticConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.Addresses)
	require.Equal(t, "modules", cfg.ModulesIndex)

	_, err = NewOptions(map[string]string{ESIndexKey: "staging"}).ElasticConfig()
	require.True(t, errors.IsCategory(err, categories.Configuration))
}
