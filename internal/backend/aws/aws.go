package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/elastictranscoder"
	ettypes "github.com/aws/aws-sdk-go-v2/service/elastictranscoder/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"videofront/internal/backend"
	"videofront/internal/config"
	"videofront/internal/logging"
)

// S3API is the subset of the S3 client the backend uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// TranscoderAPI is the subset of the Elastic Transcoder client the backend uses.
type TranscoderAPI interface {
	CreateJob(ctx context.Context, in *elastictranscoder.CreateJobInput, optFns ...func(*elastictranscoder.Options)) (*elastictranscoder.CreateJobOutput, error)
	ReadJob(ctx context.Context, in *elastictranscoder.ReadJobInput, optFns ...func(*elastictranscoder.Options)) (*elastictranscoder.ReadJobOutput, error)
}

// Backend stores videos in S3 and transcodes them with Elastic Transcoder.
type Backend struct {
	s3         S3API
	transcoder TranscoderAPI
	cfg        config.AWS
	baseURL    string
	logger     *slog.Logger
}

// LoadConfig resolves region and credentials: static keys when configured,
// the default chain otherwise. The task queue reuses it for its SQS client.
func LoadConfig(ctx context.Context, cfg config.AWS) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// New builds the service clients from cfg.
func New(ctx context.Context, cfg config.AWS, logger *slog.Logger) (*Backend, error) {
	awsCfg, err := LoadConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClients(cfg, s3.NewFromConfig(awsCfg), elastictranscoder.NewFromConfig(awsCfg), logger), nil
}

// NewWithClients builds a backend on pre-made clients.
func NewWithClients(cfg config.AWS, s3Client S3API, transcoder TranscoderAPI, logger *slog.Logger) *Backend {
	return &Backend{
		s3:         s3Client,
		transcoder: transcoder,
		cfg:        cfg,
		baseURL:    downloadBaseURL(cfg),
		logger:     logging.NewComponentLogger(logger, "backend-aws"),
	}
}

func downloadBaseURL(cfg config.AWS) string {
	if domain := strings.TrimSpace(cfg.CloudFrontDomain); domain != "" {
		return "https://" + domain
	}
	return fmt.Sprintf("https://s3-%s.amazonaws.com/%s", cfg.Region, cfg.Bucket)
}

func videoFolderKey(videoID string) string {
	return "videos/" + videoID + "/"
}

func videoKey(videoID, format string) string {
	return videoFolderKey(videoID) + format + ".mp4"
}

func subtitlePrefix(videoID, subtitleID string) string {
	return videoFolderKey(videoID) + "subs/" + subtitleID + "."
}

func subtitleKey(videoID, subtitleID, language string) string {
	return subtitlePrefix(videoID, subtitleID) + language + ".vtt"
}

// Upload implements backend.Backend.
func (b *Backend) Upload(ctx context.Context, videoID, filename string, r io.Reader) error {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	_, err := b.s3.PutObject(ctx, &s3.PutObjectInput{
		ACL:    s3types.ObjectCannedACLPrivate,
		Body:   r,
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(videoFolderKey(videoID) + "src/" + name),
	})
	if err != nil {
		return fmt.Errorf("upload source: %w", err)
	}
	return nil
}

// sourceKey returns the key of the first object in the video's src folder.
func (b *Backend) sourceKey(ctx context.Context, videoID string) (string, error) {
	out, err := b.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.cfg.Bucket),
		Prefix:  aws.String(videoFolderKey(videoID) + "src/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("list source objects: %w", err)
	}
	if len(out.Contents) == 0 || out.Contents[0].Key == nil {
		return "", backend.ErrNotUploaded
	}
	return aws.ToString(out.Contents[0].Key), nil
}

// CheckUploaded implements backend.Backend.
func (b *Backend) CheckUploaded(ctx context.Context, videoID string) error {
	_, err := b.sourceKey(ctx, videoID)
	return err
}

// StartTranscoding implements backend.Backend.
func (b *Backend) StartTranscoding(ctx context.Context, videoID string) ([]backend.Job, error) {
	src, err := b.sourceKey(ctx, videoID)
	if err != nil {
		return nil, err
	}
	jobs := make([]backend.Job, 0, len(b.cfg.Presets))
	for _, preset := range b.cfg.Presets {
		output := &ettypes.CreateJobOutput{
			Key:      aws.String(videoKey(videoID, preset.Name)),
			PresetId: aws.String(preset.PresetID),
		}
		if preset.PresetID == b.cfg.ThumbnailsPreset {
			output.ThumbnailPattern = aws.String(videoFolderKey(videoID) + "thumbs/{count}")
		}
		out, err := b.transcoder.CreateJob(ctx, &elastictranscoder.CreateJobInput{
			PipelineId: aws.String(b.cfg.PipelineID),
			Input:      &ettypes.JobInput{Key: aws.String(src)},
			Output:     output,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s job: %w", preset.Name, err)
		}
		if out.Job == nil || out.Job.Id == nil {
			return nil, fmt.Errorf("create %s job: empty job in response", preset.Name)
		}
		jobs = append(jobs, backend.Job{ID: aws.ToString(out.Job.Id), Format: preset.Name})
	}
	return jobs, nil
}

// CheckProgress implements backend.Backend. Elastic Transcoder reports no
// intermediate progress, so running jobs stay at 0 until they complete.
func (b *Backend) CheckProgress(ctx context.Context, job backend.Job) (float64, bool, error) {
	out, err := b.transcoder.ReadJob(ctx, &elastictranscoder.ReadJobInput{Id: aws.String(job.ID)})
	if err != nil {
		return 0, false, fmt.Errorf("read job %s: %w", job.ID, err)
	}
	var status, detail string
	if out.Job != nil && out.Job.Output != nil {
		status = aws.ToString(out.Job.Output.Status)
		detail = aws.ToString(out.Job.Output.StatusDetail)
	}
	switch status {
	case "Submitted", "Progressing":
		return 0, false, nil
	case "Complete":
		return 100, true, nil
	case "Error":
		return 0, false, backend.Failed(detail)
	default:
		return 0, false, backend.Failed("Unknown transcoding status: " + status)
	}
}

// AvailableFormats implements backend.Backend.
func (b *Backend) AvailableFormats(ctx context.Context, videoID string) ([]backend.Format, error) {
	var formats []backend.Format
	for _, preset := range b.cfg.Presets {
		_, err := b.s3.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.cfg.Bucket),
			Key:    aws.String(videoKey(videoID, preset.Name)),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("head %s rendition: %w", preset.Name, err)
		}
		formats = append(formats, backend.Format{Name: preset.Name, Bitrate: preset.Bitrate})
	}
	return formats, nil
}

// CreateThumbnail implements backend.Backend. Thumbnails are written during
// transcoding, so there is nothing left to do.
func (b *Backend) CreateThumbnail(context.Context, string, string) error {
	return nil
}

// DeleteThumbnail implements backend.Backend. Generated thumbnails belong to
// the video folder and go away with DeleteVideo.
func (b *Backend) DeleteThumbnail(context.Context, string, string) error {
	return nil
}

// DeleteVideo implements backend.Backend.
func (b *Backend) DeleteVideo(ctx context.Context, videoID string) error {
	if strings.TrimSpace(videoID) == "" {
		return errors.New("delete video: empty video id")
	}
	return b.deleteObjects(ctx, videoFolderKey(videoID))
}

// UploadSubtitle implements backend.Backend.
func (b *Backend) UploadSubtitle(ctx context.Context, videoID, subtitleID, language string, content []byte) error {
	_, err := b.s3.PutObject(ctx, &s3.PutObjectInput{
		ACL:         s3types.ObjectCannedACLPublicRead,
		Body:        bytes.NewReader(content),
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(subtitleKey(videoID, subtitleID, language)),
		ContentType: aws.String("text/vtt"),
	})
	if err != nil {
		return fmt.Errorf("upload subtitle: %w", err)
	}
	return nil
}

// DeleteSubtitle implements backend.Backend.
func (b *Backend) DeleteSubtitle(ctx context.Context, videoID, subtitleID string) error {
	return b.deleteObjects(ctx, subtitlePrefix(videoID, subtitleID))
}

// deleteObjects removes every object under prefix, following pagination.
func (b *Backend) deleteObjects(ctx context.Context, prefix string) error {
	var token *string
	for {
		out, err := b.s3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(b.cfg.Bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			if _, err := b.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(b.cfg.Bucket),
				Key:    obj.Key,
			}); err != nil {
				return fmt.Errorf("delete %s: %w", aws.ToString(obj.Key), err)
			}
			b.logger.Debug("deleted object", logging.String("key", aws.ToString(obj.Key)))
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			return nil
		}
		token = out.NextContinuationToken
	}
}

// StreamingURL implements backend.Backend.
func (b *Backend) StreamingURL(videoID, format string) string {
	return b.baseURL + "/" + videoKey(videoID, format)
}

// SubtitleURL implements backend.Backend.
func (b *Backend) SubtitleURL(videoID, subtitleID, language string) string {
	return b.baseURL + "/" + subtitleKey(videoID, subtitleID, language)
}

// ThumbnailURL implements backend.Backend. The first generated frame serves as
// the video thumbnail whatever the thumbnail id.
func (b *Backend) ThumbnailURL(videoID, _ string) string {
	return b.baseURL + "/" + videoFolderKey(videoID) + "thumbs/00001.png"
}

var _ backend.Backend = (*Backend)(nil)
