package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3StoreArgs are parsed from the query arguments of an s3:// warehouse URL.
type S3StoreArgs struct {
	// AWS Profile to extract credentials from the shared credentials file. If empty, the
	// default credentials are used.
	Profile string
	// Endpoint to connect to S3. If empty, the default S3 service is used.
	Endpoint string
	// Region is the region for the bucket. If empty, the region is determined from
	// Profile or the default credentials.
	Region string
	// SSE is the server-side encryption type to be applied (eg, "AES256").
	SSE string
}

type s3Store struct {
	bucket string
	prefix string
	args   S3StoreArgs
	client *s3.S3
}

func NewS3(ep *url.URL) (Store, error) {
	var args S3StoreArgs
	if err := parseStoreArgs(ep, &args); err != nil {
		return nil, err
	}

	bucket, prefix, err := bucketPrefix(ep)
	if err != nil {
		return nil, err
	}

	var awsConfig = aws.NewConfig()
	awsConfig.WithCredentialsChainVerboseErrors(true)

	if args.Region != "" {
		awsConfig.WithRegion(args.Region)
	}

	if args.Endpoint != "" {
		awsConfig.WithEndpoint(args.Endpoint)
		// Bucket-named virtual hosts are not compatible with explicit endpoints
		awsConfig.WithS3ForcePathStyle(true)
	}

	// Don't let the transport transparently decompress our data files, whichever
	// endpoint serves them.
	var transport = http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableCompression = true
	awsConfig.WithHTTPClient(&http.Client{Transport: transport})

	awsSession, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsConfig,
		Profile:           args.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("constructing S3 session: %w", err)
	}

	// The SDK will fail every request without a region, even if an endpoint was given
	if awsSession.Config.Region == nil || *awsSession.Config.Region == "" {
		return nil, fmt.Errorf("missing AWS region configuration for profile %q", args.Profile)
	}

	return &s3Store{
		bucket: bucket,
		prefix: prefix,
		args:   args,
		client: s3.New(awsSession),
	}, nil
}

func (s *s3Store) Provider() string {
	return "s3"
}

func (s *s3Store) URL(path string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key(path))
}

func (s *s3Store) Exists(ctx context.Context, path string) (bool, error) {
	var headObj = s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}
	if _, err := s.client.HeadObjectWithContext(ctx, &headObj); err == nil {
		return true, nil
	} else if isS3NotFound(err) {
		return false, nil
	} else {
		return false, err
	}
}

func (s *s3Store) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	var getObj = s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}

	resp, err := s.client.GetObjectWithContext(ctx, &getObj)
	if isS3NotFound(err) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return resp.Body, nil
}

func (s *s3Store) Put(ctx context.Context, path string, content []byte) error {
	var putObj = s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
		Body:   bytes.NewReader(content),
	}

	if s.args.SSE != "" {
		putObj.ServerSideEncryption = aws.String(s.args.SSE)
	}

	_, err := s.client.PutObjectWithContext(ctx, &putObj)
	return err
}

func (s *s3Store) Remove(ctx context.Context, path string) error {
	var deleteObj = s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &deleteObj)
	return err
}

func (s *s3Store) key(path string) string {
	return s.prefix + path
}

func isS3NotFound(err error) bool {
	if awsErr, ok := err.(awserr.RequestFailure); ok && awsErr.StatusCode() == http.StatusNotFound {
		return true
	}
	if awsErr, ok := err.(awserr.Error); ok && awsErr.Code() == s3.ErrCodeNoSuchKey {
		return true
	}

	return false
}
