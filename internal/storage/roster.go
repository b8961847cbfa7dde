package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"su_report_bot/internal/model"
)

// RosterStore loads the user roster from somewhere other than the
// environment. Used by the Lambda entry point, where the roster is managed
// as an S3 object rather than baked into the function configuration.
type RosterStore interface {
	Load(ctx context.Context) ([]model.UserProfile, error)
}

// S3RosterStore implements RosterStore using AWS S3. The object is a JSON
// array of user profiles, same shape as the JIRA_USERS env var.
type S3RosterStore struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3RosterStore creates a new S3RosterStore instance
func NewS3RosterStore(client *s3.Client, bucket, key string) *S3RosterStore {
	return &S3RosterStore{
		client: client,
		bucket: bucket,
		key:    key,
	}
}

// Load fetches and decodes the roster object.
func (s *S3RosterStore) Load(ctx context.Context) ([]model.UserProfile, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get roster from s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer result.Body.Close()

	var users []model.UserProfile
	if err := json.NewDecoder(result.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("roster s3://%s/%s is empty", s.bucket, s.key)
	}
	return users, nil
}
