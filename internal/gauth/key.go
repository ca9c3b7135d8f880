// Package gauth handles uploaded Google service-account keys: validation,
// scoped client options, and the short-lived token store handlers use to
// reference a key across requests without re-uploading it.
package gauth

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/option"
)

// OAuth scopes requested for every uploaded key. Read-only: the service
// never mutates anything upstream.
var Scopes = []string{
	"https://www.googleapis.com/auth/analytics.readonly",
	"https://www.googleapis.com/auth/bigquery.readonly",
}

var ErrInvalidKey = errors.New("invalid service account key format")

// Key is a parsed Google service-account key. The raw JSON is retained so
// the Google client libraries receive the credential exactly as uploaded.
type Key struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`

	raw []byte
}

// ParseKey parses and validates a service-account key JSON document. A key
// must carry project_id, client_email, and private_key.
func ParseKey(data []byte) (*Key, error) {
	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if key.ProjectID == "" || key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("%w: project_id, client_email and private_key are required", ErrInvalidKey)
	}
	key.raw = append([]byte(nil), data...)
	return &key, nil
}

// ClientOptions returns the options to construct Google API clients
// authenticated as this key, with the service's read-only scopes.
func (k *Key) ClientOptions() []option.ClientOption {
	return []option.ClientOption{
		option.WithCredentialsJSON(k.raw),
		option.WithScopes(Scopes...),
	}
}
