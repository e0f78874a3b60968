package firestore

import (
	"context"
	"fmt"

	fs "cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

// NewClient opens a Firestore client for the given project. With an empty
// credentials path the client falls back to application default credentials.
func NewClient(ctx context.Context, projectID, credentialsFile string) (*fs.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := fs.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore client for project %s: %w", projectID, err)
	}
	return client, nil
}
