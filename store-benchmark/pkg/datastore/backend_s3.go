package datastore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// S3Backend stores every key as an object of an S3-compatible bucket.
//
// S3 has no conditional create in this SDK version. PutIfAbsent checks with
// HEAD then writes, serialised within the process. Across processes rank 0
// creates the dataset and run nodes and every rank creates its own subrun
// and event nodes. No key is created by two ranks, so the window between
// HEAD and PUT is never contended.
type S3Backend struct {
	client *s3.S3
	bucket string
	prefix string

	createMu sync.Mutex
}

func openS3(ctx context.Context, cfg *ConnectionConfig, protocol string) (Backend, error) {
	c := cfg.S3
	if c.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	region := c.Region
	if region == "" {
		region = "us-east-1"
	}

	awsConfig := aws.NewConfig().
		WithRegion(region).
		WithDisableSSL(protocol == "http").
		WithS3ForcePathStyle(c.PathStyle)
	if c.Endpoint != "" {
		awsConfig = awsConfig.WithEndpoint(c.Endpoint)
	}
	if c.AccessKey != "" || c.SecretKey != "" {
		awsConfig = awsConfig.WithCredentials(credentials.NewStaticCredentials(c.AccessKey, c.SecretKey, ""))
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, errors.Wrap(err, "s3: failed to create session")
	}
	b := &S3Backend{client: s3.New(sess), bucket: c.Bucket, prefix: c.Prefix}

	if _, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.Bucket)}); err != nil {
		return nil, errors.Wrapf(err, "s3: bucket %s is not reachable", c.Bucket)
	}
	return b, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
		Body:   bytes.NewReader(value),
	})
	return errors.Wrapf(err, "s3: failed to put %s", key)
}

func (b *S3Backend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	b.createMu.Lock()
	defer b.createMu.Unlock()

	exists, err := b.Exists(ctx, key)
	if err != nil || exists {
		return false, err
	}
	if err := b.Put(ctx, key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if isS3NotFound(err) {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "s3: failed to get %s", key)
	}
	defer obj.Body.Close()

	value, err := io.ReadAll(obj.Body)
	return value, errors.Wrapf(err, "s3: failed to read %s", key)
}

func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + key),
	})
	if isS3NotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "s3: failed to head %s", key)
	}
	return true, nil
}

// Shutdown is a no-op; S3 is stateless from the client side.
func (b *S3Backend) Shutdown(context.Context) error { return nil }

func (b *S3Backend) Close() error { return nil }

func isS3NotFound(err error) bool {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
