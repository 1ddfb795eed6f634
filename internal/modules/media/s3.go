package media

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/govorilka/core/internal/config"
)

// Uploader pushes objects into the configured S3-compatible bucket
// (Amazon S3, Cloudflare R2, Selectel, any path-style endpoint).
type Uploader struct {
	client       *s3.Client
	bucket       string
	endpoint     string
	customDomain string
	pathStyle    bool
}

// NewUploader builds an S3 client from the runtime settings. Returns an
// error when the options are incomplete.
func NewUploader(opts config.S3Options) (*Uploader, error) {
	bucket := strings.TrimSpace(opts.Bucket)
	region := strings.TrimSpace(opts.Region)
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if bucket == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("неполная конфигурация s3: нужны bucket, access_key_id и secret_access_key")
	}
	if region == "" {
		region = "auto"
	}

	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		endpoint = strings.TrimSuffix(endpoint, "/")
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("некорректный s3 endpoint %q: %w", endpoint, err)
		}
	}

	// custom endpoints practically always need path-style addressing
	pathStyle := opts.PathStyleAccess
	if endpoint != "" && !pathStyle {
		pathStyle = true
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Uploader{
		client:       client,
		bucket:       bucket,
		endpoint:     endpoint,
		customDomain: strings.TrimRight(strings.TrimSpace(opts.CustomDomain), "/"),
		pathStyle:    pathStyle,
	}, nil
}

// Upload puts the payload under key and returns the public URL.
func (u *Uploader) Upload(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	key = normalizeKey(key)
	if key == "" {
		return "", fmt.Errorf("пустой ключ объекта")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("загрузка в s3 не удалась: %w", err)
	}
	return u.PublicURL(key), nil
}

// PublicURL resolves the browser-facing URL of an object.
func (u *Uploader) PublicURL(key string) string {
	key = normalizeKey(key)
	if u.customDomain != "" {
		return u.customDomain + "/" + key
	}
	if u.endpoint != "" {
		if u.pathStyle {
			return u.endpoint + "/" + u.bucket + "/" + key
		}
		parsed, err := url.Parse(u.endpoint)
		if err == nil {
			return parsed.Scheme + "://" + u.bucket + "." + parsed.Host + "/" + key
		}
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key)
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	for strings.Contains(key, "//") {
		key = strings.ReplaceAll(key, "//", "/")
	}
	return key
}
