package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectGetter is the part of *s3.Client the S3 fetcher uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher serves a statically exported site from an S3 bucket. A page
// path maps to an object key the way static hosts do: "/" and "/blog/"
// become ".../index.html", "/blog/post" becomes "blog/post/index.html",
// and paths with an extension are used as they are.
//
// Example usage:
//
//	client := router.NewS3Client(router.S3Options{Region: "eu-west-1"})
//	fetcher := router.NewS3Fetcher(client, "my-site", "public/")
type S3Fetcher struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Fetcher creates a fetcher over bucket. prefix is prepended to
// every key.
func NewS3Fetcher(client ObjectGetter, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key serving u.
func (f *S3Fetcher) Key(u *url.URL) string {
	p := u.Path
	switch {
	case p == "" || strings.HasSuffix(p, "/"):
		p += "index.html"
	case path.Ext(p) == "":
		p += "/index.html"
	}
	return f.prefix + strings.TrimPrefix(p, "/")
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	key := f.Key(u)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, &StatusError{URL: u.String(), Status: http.StatusNotFound}
		}
		return nil, fmt.Errorf("s3 get %s/%s: %w", f.bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(io.LimitReader(out.Body, maxPageSize))
}

// S3Options configures NewS3Client.
type S3Options struct {
	Region string
	// Endpoint overrides the service endpoint, for S3-compatible stores.
	Endpoint string
	// AccessKeyID and SecretAccessKey default to AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY. Without keys requests are anonymous, which
	// suits public buckets.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client builds an S3 client from explicit options and the standard
// AWS environment variables.
func NewS3Client(o S3Options) *s3.Client {
	if o.AccessKeyID == "" {
		o.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
		o.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
		o.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}
	if o.Region == "" {
		o.Region = os.Getenv("AWS_REGION")
	}
	if o.Region == "" {
		o.Region = "us-east-1"
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if o.AccessKeyID != "" {
		keys := aws.Credentials{
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
			SessionToken:    o.SessionToken,
			Source:          "islands",
		}
		creds = aws.NewCredentialsCache(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return keys, nil
		}))
	}

	cfg := aws.Config{Region: o.Region, Credentials: creds}
	return s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.Endpoint != "" {
			opts.BaseEndpoint = aws.String(o.Endpoint)
			opts.UsePathStyle = true
		}
	})
}
