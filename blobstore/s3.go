package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/alwitt/goutils"
	"github.com/alwitt/lexvault/errdefs"
	"github.com/apex/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-playground/validator/v10"
)

// S3ObjectAPI the subset of the S3 client used by the store
type S3ObjectAPI interface {
	PutObject(
		ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
	GetObject(
		ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options),
	) (*s3.GetObjectOutput, error)
	DeleteObject(
		ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
}

// S3Params S3 compatible object storage connection parameters
type S3Params struct {
	// Bucket target bucket
	Bucket string `validate:"required" yaml:"bucket"`
	// Region bucket region
	Region string `validate:"required" yaml:"region"`
	// Endpoint custom endpoint for S3 compatible services (i.e. MinIO)
	Endpoint string `validate:"omitempty,url" yaml:"endpoint"`
	// AccessKeyID static credential; the default credential chain is used when empty
	AccessKeyID string `yaml:"accessKeyID"`
	// SecretAccessKey static credential
	SecretAccessKey string `validate:"required_with=AccessKeyID" yaml:"secretAccessKey"`
	// UsePathStyle address buckets by path instead of virtual host
	UsePathStyle bool `yaml:"usePathStyle"`
}

// s3Store Store on S3
type s3Store struct {
	goutils.Component
	client S3ObjectAPI
	bucket string
}

/*
NewS3Store define a store on an S3 compatible service

	@param ctx context.Context - execution context
	@param params S3Params - connection parameters
	@returns store
*/
func NewS3Store(ctx context.Context, params S3Params) (Store, error) {
	if err := validator.New().Struct(&params); err != nil {
		return nil, fmt.Errorf("invalid S3 parameters [%w]", err)
	}

	options := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(params.Region)}
	if params.AccessKeyID != "" {
		options = append(options, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				params.AccessKeyID, params.SecretAccessKey, "",
			),
		))
	}
	cfg, err := awsConfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config [%w]", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if params.Endpoint != "" {
			o.BaseEndpoint = aws.String(params.Endpoint)
		}
		o.UsePathStyle = params.UsePathStyle
	})

	return NewS3StoreWithClient(client, params.Bucket), nil
}

/*
NewS3StoreWithClient define a store over an existing S3 client

	@param client S3ObjectAPI - the S3 client
	@param bucket string - target bucket
	@returns store
*/
func NewS3StoreWithClient(client S3ObjectAPI, bucket string) Store {
	return &s3Store{
		Component: goutils.Component{
			LogTags: log.Fields{
				"package": "lexvault", "module": "blobstore", "component": "s3", "bucket": bucket,
			},
			LogTagModifiers: []goutils.LogMetadataModifier{
				goutils.ModifyLogMetadataByRestRequestParam,
			},
		},
		client: client,
		bucket: bucket,
	}
}

func (s *s3Store) Put(ctx context.Context, path string, content []byte) error {
	logTags := s.GetLogTagsForContext(ctx)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String("application/octet-stream"),
	}); err != nil {
		return &errdefs.StorageIOError{Op: "put", Path: path, Err: err}
	}
	log.WithFields(logTags).WithField("path", path).Debug("Wrote object")
	return nil
}

func (s *s3Store) Get(ctx context.Context, path string) ([]byte, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			err = ErrObjectNotFound
		}
		return nil, &errdefs.StorageIOError{Op: "get", Path: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errdefs.StorageIOError{Op: "get", Path: path, Err: err}
	}
	return content, nil
}

func (s *s3Store) Delete(ctx context.Context, path string) error {
	logTags := s.GetLogTagsForContext(ctx)
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	}); err != nil {
		return &errdefs.StorageIOError{Op: "delete", Path: path, Err: err}
	}
	log.WithFields(logTags).WithField("path", path).Debug("Deleted object")
	return nil
}
