package datastore

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// KEY LAYOUT:
//
//	ds/<name>[/<name>...]                      dataset → 16-byte id
//	id/<hex id>                                dataset id → full name
//	run/<hex id>/<run>                         run marker
//	run/<hex id>/<run>/<subrun>                subrun marker
//	run/<hex id>/<run>/<subrun>/<event>        event marker
//	run/<hex id>/<run>/<subrun>/<event>/<label>#<type>  product value
//
// Numbers are zero padded to 20 digits so keys sort numerically.

// productType is the type tag appended to product labels.
const productType = "bytes"

func validateName(kind, name string) error {
	if name == "" {
		return errors.Errorf("%s name is empty", kind)
	}
	if strings.ContainsAny(name, "/#") {
		return errors.Errorf("%s name %q contains '/' or '#'", kind, name)
	}
	return nil
}

func escapePath(fullName string) string {
	parts := strings.Split(fullName, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func datasetKey(fullName string) string {
	return "ds/" + escapePath(fullName)
}

func datasetIDKey(id [16]byte) string {
	return "id/" + hex.EncodeToString(id[:])
}

func runKey(id [16]byte, run uint64) string {
	return fmt.Sprintf("run/%s/%020d", hex.EncodeToString(id[:]), run)
}

func subRunKey(runKey string, subrun uint64) string {
	return fmt.Sprintf("%s/%020d", runKey, subrun)
}

func eventKey(subRunKey string, event uint64) string {
	return fmt.Sprintf("%s/%020d", subRunKey, event)
}

func productKey(eventKey, label string) string {
	return eventKey + "/" + url.PathEscape(label) + "#" + productType
}
