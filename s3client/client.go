package s3client

import (
	"medintake.com/intake/logger"
	"bytes"
	"context"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"sync"
)

const csvContentType = "text/csv; charset=utf-8"

// Client archives submitted intakes. A failed request drops the cached session
// and the request is retried once on a fresh one.
type Client struct {
	bucketName string
	env        EnvironmentConfig
	acquire    func() (*session.Session, error)

	mu   sync.Mutex
	sess *session.Session
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	errLogger := clientLogger.With().Caller().Logger()
	env, err := readEnvironment(&errLogger)
	if err != nil {
		clientLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := &Client{bucketName: env.BucketName, env: env}
	client.acquire = client.verifiedSession
	if _, err := client.session(); err != nil {
		return nil, err
	}
	return client, nil
}

// Upload stores body under key. It satisfies review.Archiver.
func (client *Client) Upload(ctx context.Context, key string, body []byte) error {
	params := &s3manager.UploadInput{
		Bucket:      &client.bucketName,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String(csvContentType),
	}
	return client.withSession(func(sess *session.Session) error {
		params.Body = bytes.NewReader(body)
		return upload(ctx, sess, params)
	})
}

func (client *Client) Download(ctx context.Context, key string) ([]byte, error) {
	params := &s3.GetObjectInput{
		Bucket: &client.bucketName,
		Key:    &key,
	}
	var res []byte
	err := client.withSession(func(sess *session.Session) (err error) {
		res, err = download(ctx, sess, params)
		return err
	})
	return res, err
}

func (client *Client) Close() {
	client.mu.Lock()
	defer client.mu.Unlock()
	client.sess = nil
}

func (client *Client) withSession(call func(*session.Session) error) error {
	sess, err := client.session()
	if err != nil {
		return err
	}
	if err = call(sess); err == nil {
		return nil
	}
	clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
	client.reset(sess)
	if sess, err = client.session(); err != nil {
		return err
	}
	return call(sess)
}

func (client *Client) session() (*session.Session, error) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.sess != nil {
		return client.sess, nil
	}
	sess, err := client.acquire()
	if err != nil {
		return nil, err
	}
	client.sess = sess
	return sess, nil
}

// reset drops sess unless another caller has already replaced it.
func (client *Client) reset(sess *session.Session) {
	client.mu.Lock()
	defer client.mu.Unlock()
	if client.sess == sess {
		client.sess = nil
	}
}

func upload(ctx context.Context, sess *session.Session, params *s3manager.UploadInput) error {
	uplLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()
	sdkLog := sdkLogger.With().Str("key", *params.Key).Logger()

	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	uplLogger.Debug().Msg("Uploading the file")
	if _, err := uploader.UploadWithContext(ctx, params); err != nil {
		uplLogger.Error().Err(err).Msg("Failed to upload file")
		return err
	}
	return nil
}

func download(ctx context.Context, sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	dlLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()
	sdkLog := sdkLogger.With().Str("key", *params.Key).Logger()

	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	buf := aws.NewWriteAtBuffer([]byte{})
	size, err := downloader.DownloadWithContext(ctx, buf, params)
	if err != nil {
		dlLogger.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	dlLogger.Debug().Int64("size", size).Msg("Downloaded archive")
	return buf.Bytes(), nil
}

// awsConfig uses static credentials when they are set in the environment and
// the default provider chain otherwise.
func awsConfig(env EnvironmentConfig) (*aws.Config, error) {
	cfg := aws.NewConfig().
		WithRegion(env.Region).
		WithMaxRetries(4).
		WithLogLevel(aws.LogDebug)

	if env.AccessKeyID != "" {
		creds := credentials.NewStaticCredentials(env.AccessKeyID, env.AccessKey, "")
		if _, err := creds.Get(); err != nil {
			return nil, fmt.Errorf("env credentials: %w", err)
		}
		cfg = cfg.WithCredentials(creds)
	}
	if env.Env == "dev" && len(env.AwsEndpoint) > 0 {
		cfg = cfg.WithEndpoint(env.AwsEndpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

func (client *Client) verifiedSession() (*session.Session, error) {
	cfg, err := awsConfig(client.env)
	if err != nil {
		return nil, err
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return nil, err
	}
	if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err != nil {
		clientLogger.Error().Err(err).Msg("Could not verify S3 credentials")
		return nil, fmt.Errorf("could not initialize S3 session: %w", err)
	}
	clientLogger.Info().Msg("S3 session successfully initialized")
	return sess, nil
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"INTAKE_S3_BUCKET" required:"true"`
	Env         string `envconfig:"INTAKE_ENV" default:"prod"`
	Region      string `envconfig:"INTAKE_AWS_REGION" required:"true"`
	AwsEndpoint string `envconfig:"INTAKE_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"INTAKE_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"INTAKE_AWS_ACCESS_KEY" default:""`
}

func readEnvironment(errLogger *zerolog.Logger) (EnvironmentConfig, error) {
	var config EnvironmentConfig
	err := envconfig.Process("", &config)
	if err != nil {
		errLogger.Err(err).Msg("Got error while processing environment")
		return config, err
	}
	return config, nil
}

type s3Logger struct {
	sdkLogger zerolog.Logger
}

func getLogger(sdkLogger zerolog.Logger) *s3Logger {
	return &s3Logger{
		sdkLogger,
	}
}

func (logger *s3Logger) Log(v ...interface{}) {
	//nolint
	logger.sdkLogger.Debug().Msg(fmt.Sprint(v...))
}
