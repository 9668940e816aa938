package port

import "context"

// VideoStorage fetches queued videos from object storage into a request-scoped
// local path. The local copy is owned by that one request and deleted with its
// workdir.
type VideoStorage interface {
	FetchVideo(ctx context.Context, objectKey string, destPath string) error
}
