package redis

import "fmt"

const keyPrefix = "meucuidador"

// ViewingContextKey is the Redis key holding a viewer's selected patient.
// Format: meucuidador:viewing_context:{viewerID}
func ViewingContextKey(viewerID int64) string {
	return fmt.Sprintf("%s:viewing_context:%d", keyPrefix, viewerID)
}
