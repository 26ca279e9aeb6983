package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/textextract"
)

// parseGSURI splits gs://bucket/object. An empty object or one ending in "/" is a prefix.
func parseGSURI(uri string) (bucket, object string, prefix bool, err error) {
	rest := strings.TrimPrefix(uri, "gs://")
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false, common.NewAppError("SOURCE_ERROR", fmt.Sprintf("invalid gs uri %q", uri), common.ErrInvalidInput)
	}
	return bucket, object, object == "" || strings.HasSuffix(object, "/"), nil
}

func (l *Loader) loadGCS(ctx context.Context, uri string, st *loadState) error {
	bucket, object, prefix, err := parseGSURI(uri)
	if err != nil {
		return err
	}
	c, err := l.client(ctx)
	if err != nil {
		return err
	}
	bkt := c.Bucket(bucket)
	log := l.log.With("bucket", bucket)

	if !prefix {
		st.stats.Scanned++
		st.stats.Matched++
		l.readObject(ctx, bkt, object, st)
		return nil
	}

	it := bkt.Objects(ctx, &storage.Query{Prefix: object})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list gs://%s/%s: %w", bucket, object, err)
		}
		st.stats.Scanned++
		name := attrs.Name
		if strings.HasSuffix(name, "/") || !l.allowed(name) {
			continue
		}
		if l.opts.SkipHidden && strings.HasPrefix(path.Base(name), ".") {
			continue
		}
		if attrs.Size > l.opts.MaxBytes {
			st.fail("gs://"+bucket+"/"+name, fmt.Errorf("document larger than %d bytes", l.opts.MaxBytes))
			continue
		}
		st.stats.Matched++
		l.readObject(ctx, bkt, name, st)
	}
	log.Debug("source.gcs.listed", "prefix", object, "scanned", st.stats.Scanned)
	return nil
}

func (l *Loader) readObject(ctx context.Context, bkt *storage.BucketHandle, name string, st *loadState) {
	loc := "gs://" + bkt.BucketName() + "/" + name
	r, err := bkt.Object(name).NewReader(ctx)
	if err != nil {
		st.fail(loc, err)
		return
	}
	defer func() { _ = r.Close() }()
	data, err := readLimited(r, l.opts.MaxBytes)
	if err != nil {
		st.fail(loc, err)
		return
	}
	st.add(textextract.Source{Name: path.Base(name), Path: loc, Data: data}, l.log)
}
