package credentials

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LookupFunc returns the value of an environment-style variable and whether it is set.
type LookupFunc func(key string) (string, bool)

// OSLookup reads the process environment.
var OSLookup LookupFunc = os.LookupEnv

// DotenvLookup reads variables from a dotenv file without touching the process environment.
func DotenvLookup(path string) (LookupFunc, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}, nil
}

// ChainLookup consults each lookup in turn and returns the first non-blank value.
func ChainLookup(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				return v, true
			}
		}
		return "", false
	}
}
