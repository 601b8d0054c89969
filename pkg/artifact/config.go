package artifact

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config selects and configures a Store.
type Config struct {
	// Kind is "local" (default) or "s3".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Dir is the root directory of a local store.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`

	S3 *S3Config `yaml:"s3,omitempty" json:"s3,omitempty"`
}

// S3Config holds S3 or S3-compatible endpoint settings.
type S3Config struct {
	Bucket   string `yaml:"bucket" json:"bucket"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// PathStyle addresses buckets as endpoint/bucket, as MinIO expects.
	PathStyle bool `yaml:"path_style,omitempty" json:"path_style,omitempty"`

	// AccessKey and SecretKey default to AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY.
	AccessKey string `yaml:"access_key,omitempty" json:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" json:"secret_key,omitempty"`
}

// Open builds the store described by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Kind {
	case "", "local":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("artifact: local store needs a dir")
		}
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.S3 == nil || cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("artifact: s3 store needs a bucket")
		}
		return NewS3(NewS3Client(*cfg.S3), cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("artifact: unknown store kind %q", cfg.Kind)
	}
}

// NewS3Client returns an S3 client with static credentials taken from cfg
// or the standard AWS environment variables.
func NewS3Client(cfg S3Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	access, secret := cfg.AccessKey, cfg.SecretKey
	if access == "" {
		access = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if secret == "" {
		secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	session := os.Getenv("AWS_SESSION_TOKEN")

	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(
			func(context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     access,
					SecretAccessKey: secret,
					SessionToken:    session,
					Source:          "maactl",
				}, nil
			})),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}
