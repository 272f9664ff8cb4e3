package s3client

import (
	"bytes"
	"errors"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestReadEnvironment(t *testing.T) {
	t.Setenv("INTAKE_S3_BUCKET", "intake-archive")
	t.Setenv("INTAKE_AWS_REGION", "us-east-1")

	errLogger := zerolog.Nop()
	env, err := readEnvironment(&errLogger)
	require.NoError(t, err)
	require.Equal(t, "intake-archive", env.BucketName)
	require.Equal(t, "prod", env.Env)
	require.Empty(t, env.AwsEndpoint)
}

func TestAWSConfig(t *testing.T) {
	t.Run("Dev endpoint uses path style", func(t *testing.T) {
		cfg, err := awsConfig(EnvironmentConfig{
			Region:      "us-east-1",
			Env:         "dev",
			AwsEndpoint: "http://localhost:4566",
			AccessKeyID: "id",
			AccessKey:   "secret",
		})
		require.NoError(t, err)
		require.Equal(t, "http://localhost:4566", *cfg.Endpoint)
		require.True(t, *cfg.S3ForcePathStyle)
		require.Equal(t, "us-east-1", *cfg.Region)
		require.NotNil(t, cfg.Credentials)
	})
	t.Run("Endpoint ignored outside dev", func(t *testing.T) {
		cfg, err := awsConfig(EnvironmentConfig{
			Region:      "us-east-1",
			Env:         "prod",
			AwsEndpoint: "http://localhost:4566",
		})
		require.NoError(t, err)
		require.Nil(t, cfg.Endpoint)
		require.Nil(t, cfg.Credentials)
	})
	t.Run("Access id without key", func(t *testing.T) {
		_, err := awsConfig(EnvironmentConfig{Region: "us-east-1", AccessKeyID: "id"})
		require.Error(t, err)
	})
}

type acquirer struct {
	calls int
	fail  bool
}

func (a *acquirer) acquire() (*session.Session, error) {
	a.calls++
	if a.fail {
		return nil, errors.New("no credentials")
	}
	return session.NewSession(&aws.Config{Region: aws.String("us-east-1")})
}

func TestSessionRefresh(t *testing.T) {
	t.Run("Failed call retries on a new session", func(t *testing.T) {
		a := &acquirer{}
		client := &Client{acquire: a.acquire}
		var seen []*session.Session
		err := client.withSession(func(sess *session.Session) error {
			seen = append(seen, sess)
			if len(seen) == 1 {
				return errors.New("expired token")
			}
			return nil
		})
		require.NoError(t, err)
		require.Len(t, seen, 2)
		require.NotSame(t, seen[0], seen[1])
		require.Equal(t, 2, a.calls)
	})
	t.Run("Successful calls share the session", func(t *testing.T) {
		a := &acquirer{}
		client := &Client{acquire: a.acquire}
		for i := 0; i < 3; i++ {
			require.NoError(t, client.withSession(func(*session.Session) error { return nil }))
		}
		require.Equal(t, 1, a.calls)
	})
	t.Run("Stale reset keeps the newer session", func(t *testing.T) {
		a := &acquirer{}
		client := &Client{acquire: a.acquire}
		stale, err := client.session()
		require.NoError(t, err)
		client.reset(stale)
		fresh, err := client.session()
		require.NoError(t, err)

		client.reset(stale)
		current, err := client.session()
		require.NoError(t, err)
		require.Same(t, fresh, current)
		require.Equal(t, 2, a.calls)
	})
	t.Run("Acquire failure is returned", func(t *testing.T) {
		client := &Client{acquire: (&acquirer{fail: true}).acquire}
		called := false
		err := client.withSession(func(*session.Session) error {
			called = true
			return nil
		})
		require.Error(t, err)
		require.False(t, called)
	})
}

func TestSDKLogger(t *testing.T) {
	var buf bytes.Buffer
	l := getLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	l.Log("DEBUG:", "request sent")
	require.Contains(t, buf.String(), "request sent")
}
