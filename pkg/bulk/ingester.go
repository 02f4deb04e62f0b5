package bulk

import (
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	uriPrefixField = "uriprefix"
	uriSuffix      = ".json"
)

// DocumentURI names a document the way the built-in ingester does: the work unit's uriprefix,
// a random UUID and the JSON suffix. No leading slash is added when the prefix is empty.
func DocumentURI(workUnit []byte) string {
	prefix := gjson.GetBytes(workUnit, uriPrefixField).String()
	return prefix + uuid.NewString() + uriSuffix
}
