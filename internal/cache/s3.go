/*
 Copyright 2019 - 2025 Crunchy Data Solutions, Inc.
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at
      http://www.apache.org/licenses/LICENSE-2.0
 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an S3-compatible object store cache backend
// (spec §4.G / §6 [cache.s3]).
type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	BaseURLOverride   string
	KeyPrefix         string
	GzipHeaderEnabled bool
}

// s3API is the subset of *s3.Client this package calls, narrowed to an
// interface so tests can substitute a fake without a live endpoint.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Cache stores tiles in an S3-compatible bucket, tagging uploads with
// Content-Encoding: gzip unless disabled.
type S3Cache struct {
	cfg    S3Config
	client s3API
}

// NewS3Cache builds an S3-backed cache client for cfg. Credentials and
// endpoint resolution follow the standard AWS SDK v2 config chain, with
// cfg's fields overriding it for S3-compatible (non-AWS) endpoints.
func NewS3Cache(ctx context.Context, cfg S3Config) (*S3Cache, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: cfg.AccessKey, SecretAccessKey: cfg.SecretKey}, nil
		})),
	)
	if err != nil {
		return nil, fmt.Errorf("cache: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3Cache{cfg: cfg, client: client}, nil
}

func (s *S3Cache) key(path string) string {
	if s.cfg.KeyPrefix == "" {
		return path
	}
	return s.cfg.KeyPrefix + "/" + path
}

func (s *S3Cache) Info() string    { return fmt.Sprintf("s3cache(%s/%s)", s.cfg.Endpoint, s.cfg.Bucket) }
func (s *S3Cache) BaseURL() string { return s.cfg.BaseURLOverride }

func (s *S3Cache) Read(ctx context.Context, path string, sink func(io.Reader) error) (bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, fmt.Errorf("cache: s3 get %q: %w", path, err)
	}
	defer out.Body.Close()
	if err := sink(out.Body); err != nil {
		return true, fmt.Errorf("cache: consume %q: %w", path, err)
	}
	return true, nil
}

func (s *S3Cache) Write(ctx context.Context, path string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(path)),
		Body:   bytes.NewReader(data),
	}
	if s.cfg.GzipHeaderEnabled {
		input.ContentEncoding = aws.String("gzip")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("cache: s3 put %q: %w", path, err)
	}
	return nil
}

// Exists issues a real HeadObject call. The source implementation's S3
// cache always reports true here regardless of whether the object exists
// (spec §9 notes this as a probable bug); this implementation checks.
func (s *S3Cache) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.key(path)),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, fmt.Errorf("cache: s3 head %q: %w", path, err)
}
