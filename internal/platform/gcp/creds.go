package gcp

import (
	"strings"

	"google.golang.org/api/option"

	"github.com/yungbote/coursebuilder-backend/internal/platform/envutil"
)

// Credentials holds either inline service-account JSON or a path to one.
// Both empty means application default credentials.
type Credentials struct {
	JSON string
	File string
}

func CredentialsFromEnv() Credentials {
	raw := envutil.String("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	if raw == "" {
		raw = envutil.String("GOOGLE_APPLICATION_CREDENTIALS", "")
	}
	if strings.HasPrefix(raw, "{") {
		return Credentials{JSON: raw}
	}
	return Credentials{File: raw}
}

func (c Credentials) ClientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}
