package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"listwatch/internal/config"
	"listwatch/internal/ingest"
)

// S3Archive stores run archives as objects under a key prefix in an S3
// bucket. Uploads go through the transfer manager, so large archives are
// split into multipart uploads automatically.
type S3Archive struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Archive creates an S3-backed archive from configuration.
// When an access key is configured it is used as a static credentials
// provider; otherwise the SDK's default credential chain applies.
func NewS3Archive(cfg config.ArchiveConfig) (*S3Archive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 archive requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Archive{
		name:     cfg.Name,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (a *S3Archive) key(run ingest.RunID) string {
	if a.prefix == "" {
		return run.String() + ".tar"
	}
	return a.prefix + "/" + run.String() + ".tar"
}

// Put uploads the archive blob for a run. Re-uploading the same run simply
// overwrites the object with identical bytes.
func (a *S3Archive) Put(run ingest.RunID, r io.Reader, size int64) error {
	_, err := a.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(run)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("uploading archive for run %s: %w", run, err)
	}
	return nil
}

// Get downloads the archive blob for a run and writes it to w.
func (a *S3Archive) Get(run ingest.RunID, w io.Writer) error {
	out, err := a.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(run)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return fmt.Errorf("archive not found for run: %s", run)
		}
		return fmt.Errorf("downloading archive for run %s: %w", run, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading archive for run %s: %w", run, err)
	}
	return nil
}

// Has reports whether an archive object exists for the run.
func (a *S3Archive) Has(run ingest.RunID) (bool, error) {
	_, err := a.client.HeadObject(context.Background(), &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(run)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("checking archive for run %s: %w", run, err)
	}
	return true, nil
}

// ValidateSetup verifies the bucket is reachable with the configured
// credentials.
func (a *S3Archive) ValidateSetup() error {
	_, err := a.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("archive bucket not accessible: %w", err)
	}
	return nil
}

// Compile-time check that S3Archive implements ingest.Archive
var _ ingest.Archive = (*S3Archive)(nil)
