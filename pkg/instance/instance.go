package instance

import "github.com/angelmondragon/zipshift-backend/pkg/env"

// GetID returns the process instance identifier: an explicit INSTANCE_ID, the
// platform dyno name, the container hostname, then "local".
func GetID() string {
	for _, key := range []string{"INSTANCE_ID", "DYNO", "HOSTNAME"} {
		if id, ok := env.Lookup(key); ok {
			return id
		}
	}
	return "local"
}
