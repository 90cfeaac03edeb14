// Package s3 implements storage.Store on an S3 bucket via the AWS SDK.
package s3

import (
	"bytes"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"

	"github.com/rankmaniac/rankmaniac/storage"
)

// DeleteObjects accepts at most this many keys per call.
const maxDeleteBatch = 1000

type Store struct {
	svc    *s3.S3
	bucket string
}

func New(sess *session.Session, bucket string) *Store {
	return &Store{svc: s3.New(sess), bucket: bucket}
}

func (s *Store) List(prefix string) ([]string, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	err := s.svc.ListObjectsV2Pages(input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing s3://%s/%s", s.bucket, prefix)
	}
	return keys, nil
}

func (s *Store) Delete(keys []string) error {
	for len(keys) > 0 {
		batch := keys
		if len(batch) > maxDeleteBatch {
			batch = batch[:maxDeleteBatch]
		}
		keys = keys[len(batch):]

		objects := make([]*s3.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			objects = append(objects, &s3.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.svc.DeleteObjects(&s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &s3.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return errors.Wrapf(err, "deleting %d keys from s3://%s", len(batch), s.bucket)
		}
	}
	return nil
}

func (s *Store) Copy(key, destPrefix string) error {
	dest := storage.JoinKey(destPrefix, path.Base(key))
	_, err := s.svc.CopyObject(&s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + key)),
		Key:        aws.String(dest),
	})
	if err != nil {
		if isNotFound(err) {
			return &storage.NotFoundError{Key: key}
		}
		return errors.Wrapf(err, "copying s3://%s/%s to %s", s.bucket, key, dest)
	}
	return nil
}

func (s *Store) GetContents(key string) ([]byte, error) {
	out, err := s.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, &storage.NotFoundError{Key: key}
		}
		return nil, errors.Wrapf(err, "getting s3://%s/%s", s.bucket, key)
	}
	defer out.Body.Close()
	contents, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading s3://%s/%s", s.bucket, key)
	}
	return contents, nil
}

func (s *Store) PutContents(key string, contents []byte) error {
	_, err := s.svc.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(contents),
	})
	return errors.Wrapf(err, "putting s3://%s/%s", s.bucket, key)
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
