package backup

import (
	"bytes"
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

type (
	// S3Config holds the object storage settings.
	S3Config struct {
		Endpoint  string `koanf:"endpoint"   yaml:"endpoint,omitempty"`
		Bucket    string `koanf:"bucket"     yaml:"bucket,omitempty"`
		Region    string `koanf:"region"     yaml:"region,omitempty"`
		AccessKey string `koanf:"access_key" yaml:"access_key,omitempty"`
		SecretKey string `koanf:"secret_key" yaml:"secret_key,omitempty"`
		UseSSL    bool   `koanf:"use_ssl"    yaml:"use_ssl,omitempty"`
	}

	// An Uploader stores backups on an S3-compatible object storage.
	Uploader struct {
		client *minio.Client
		bucket string
	}
)

// NewUploader returns a new Uploader.
func NewUploader(cfg S3Config) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("missing object storage endpoint or bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create object storage client")
	}

	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// Upload stores the document as the given object and returns its location.
func (u *Uploader) Upload(ctx context.Context, name string, d Document) (string, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return "", err
	}

	info, err := u.client.PutObject(ctx, u.bucket, name, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", errors.Wrap(err, "could not upload backup")
	}

	return u.client.EndpointURL().String() + "/" + info.Bucket + "/" + info.Key, nil
}
