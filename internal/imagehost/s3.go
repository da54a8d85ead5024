package imagehost

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/FACorreiaa/easytrip-api/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 stores images in an S3-compatible bucket such as Cloudflare R2.
type S3 struct {
	client        putObjectAPI
	bucket        string
	publicBaseURL string
}

var _ Uploader = (*S3)(nil)

func NewS3(cfg config.ImagesConfig) (*S3, error) {
	c := cfg.S3
	if c.Bucket == "" || c.PublicBaseURL == "" {
		return nil, errors.New("images.s3.bucket and images.s3.publicBaseURL are required for the s3 provider")
	}
	opts := s3.Options{
		Region:       c.Region,
		UsePathStyle: true,
	}
	if c.Endpoint != "" {
		opts.BaseEndpoint = aws.String(c.Endpoint)
	}
	if c.AccessKeyID != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
	}
	return newS3WithClient(s3.New(opts), c.Bucket, c.PublicBaseURL), nil
}

func newS3WithClient(client putObjectAPI, bucket, publicBaseURL string) *S3 {
	return &S3{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *S3) Name() string { return "s3" }

func (s *S3) Upload(ctx context.Context, localPath string, opts Options) (Result, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	contentType := http.DetectContentType(head[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return Result{}, fmt.Errorf("unsupported content type %q", contentType)
	}

	res := Result{Format: strings.TrimPrefix(contentType, "image/")}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind image: %w", err)
	}
	if cfg, format, err := image.DecodeConfig(f); err == nil {
		res.Width, res.Height, res.Format = cfg.Width, cfg.Height, format
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind image: %w", err)
	}

	key := objectKey(opts, localPath)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}
	if len(opts.Tags) > 0 {
		input.Metadata = map[string]string{"tags": strings.Join(opts.Tags, ",")}
	}
	if _, err = s.client.PutObject(ctx, input); err != nil {
		return Result{}, fmt.Errorf("s3 put object: %w", err)
	}

	res.URL = s.publicBaseURL + "/" + key
	return res, nil
}

func objectKey(opts Options, localPath string) string {
	name := opts.PublicID
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(localPath), filepath.Ext(localPath))
	}
	return path.Join(opts.Folder, name+strings.ToLower(filepath.Ext(localPath)))
}
