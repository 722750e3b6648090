package datastore

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"github.com/pkg/errors"
)

// OCIBackend stores every key as an object in an Object Storage bucket.
type OCIBackend struct {
	client    objectstorage.ObjectStorageClient
	namespace string
	bucket    string
	prefix    string
}

func openOCI(ctx context.Context, cfg *ConnectionConfig, _ string) (Backend, error) {
	c := cfg.OCI
	if c.Bucket == "" {
		return nil, errors.New("oci: bucket is required")
	}

	var provider common.ConfigurationProvider
	var err error
	if c.ConfigFile != "" {
		profile := c.Profile
		if profile == "" {
			profile = "DEFAULT"
		}
		provider, err = common.ConfigurationProviderFromFile(c.ConfigFile, profile)
		if err != nil {
			return nil, errors.Wrapf(err, "oci: failed to load %s", c.ConfigFile)
		}
	} else {
		provider = common.DefaultConfigProvider()
	}

	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(provider)
	if err != nil {
		return nil, errors.Wrap(err, "oci: failed to create client")
	}
	if c.Region != "" {
		client.SetRegion(c.Region)
	}

	namespace := c.Namespace
	if namespace == "" {
		resp, err := client.GetNamespace(ctx, objectstorage.GetNamespaceRequest{})
		if err != nil {
			return nil, errors.Wrap(err, "oci: failed to get namespace")
		}
		namespace = *resp.Value
	}
	return &OCIBackend{client: client, namespace: namespace, bucket: c.Bucket, prefix: c.Prefix}, nil
}

func (b *OCIBackend) Name() string { return "oci" }

func (b *OCIBackend) putRequest(key string, value []byte) objectstorage.PutObjectRequest {
	return objectstorage.PutObjectRequest{
		NamespaceName: common.String(b.namespace),
		BucketName:    common.String(b.bucket),
		ObjectName:    common.String(b.prefix + key),
		ContentLength: common.Int64(int64(len(value))),
		PutObjectBody: io.NopCloser(bytes.NewReader(value)),
	}
}

func (b *OCIBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.client.PutObject(ctx, b.putRequest(key, value))
	return errors.Wrapf(err, "oci: failed to put %s", key)
}

// PutIfAbsent relies on If-None-Match: * which fails with 412 when the
// object already exists.
func (b *OCIBackend) PutIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	req := b.putRequest(key, value)
	req.IfNoneMatch = common.String("*")
	_, err := b.client.PutObject(ctx, req)
	if ociStatus(err) == http.StatusPreconditionFailed {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "oci: failed to create %s", key)
	}
	return true, nil
}

func (b *OCIBackend) Get(ctx context.Context, key string) ([]byte, error) {
	resp, err := b.client.GetObject(ctx, objectstorage.GetObjectRequest{
		NamespaceName: common.String(b.namespace),
		BucketName:    common.String(b.bucket),
		ObjectName:    common.String(b.prefix + key),
	})
	if ociStatus(err) == http.StatusNotFound {
		return nil, notFound(key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "oci: failed to get %s", key)
	}
	defer resp.Content.Close()

	value, err := io.ReadAll(resp.Content)
	return value, errors.Wrapf(err, "oci: failed to read %s", key)
}

func (b *OCIBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, objectstorage.HeadObjectRequest{
		NamespaceName: common.String(b.namespace),
		BucketName:    common.String(b.bucket),
		ObjectName:    common.String(b.prefix + key),
	})
	if ociStatus(err) == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "oci: failed to head %s", key)
	}
	return true, nil
}

// Shutdown is a no-op; the bucket outlives the benchmark.
func (b *OCIBackend) Shutdown(context.Context) error { return nil }

func (b *OCIBackend) Close() error { return nil }

func ociStatus(err error) int {
	if serviceErr, ok := common.IsServiceError(err); ok {
		return serviceErr.GetHTTPStatusCode()
	}
	return 0
}
