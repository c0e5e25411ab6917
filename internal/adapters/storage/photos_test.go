package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/storage"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestPhotoStore(t *testing.T) {
	Convey("Given a photo store on a fake bucket", t, func() {
		api := newFakeS3()
		ps, err := storage.NewWithClient(api, "photos", "https://cdn.example.com/futbol", nil)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("Upload stores the object under the player's prefix", func() {
			key, err := ps.Upload(ctx, "p1", "image/png", strings.NewReader("png-bytes"))
			So(err, ShouldBeNil)
			So(key, ShouldStartWith, "players/p1/")
			So(key, ShouldEndWith, ".png")
			So(string(api.objects[key]), ShouldEqual, "png-bytes")
			So(api.types[key], ShouldEqual, "image/png")

			Convey("URL resolves against the public base", func() {
				So(ps.URL(key), ShouldEqual, "https://cdn.example.com/futbol/"+key)
			})

			Convey("Delete removes it", func() {
				So(ps.Delete(ctx, key), ShouldBeNil)
				So(api.objects, ShouldBeEmpty)
			})
		})

		Convey("Unsupported content types are rejected before upload", func() {
			_, err := ps.Upload(ctx, "p1", "application/pdf", strings.NewReader("x"))
			So(errors.Is(err, storage.ErrUnsupportedType), ShouldBeTrue)
			So(api.objects, ShouldBeEmpty)
		})

		Convey("Bucket errors are wrapped", func() {
			api.fail = errors.New("access denied")
			_, err := ps.Upload(ctx, "p1", "image/jpeg", strings.NewReader("x"))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "access denied")
		})

		Convey("Empty keys are ignored", func() {
			So(ps.Delete(ctx, ""), ShouldBeNil)
			So(ps.URL(""), ShouldEqual, "")
		})
	})

	Convey("Configuration is validated", t, func() {
		_, err := storage.New(context.Background(), storage.Config{}, nil)
		So(errors.Is(err, storage.ErrDisabled), ShouldBeTrue)

		_, err = storage.NewWithClient(newFakeS3(), "", "", nil)
		So(errors.Is(err, storage.ErrInvalidConfig), ShouldBeTrue)

		ps, err := storage.NewWithClient(newFakeS3(), "b", "", nil)
		So(err, ShouldBeNil)
		So(ps.URL("players/p1/x.png"), ShouldEqual, "")
	})
}
