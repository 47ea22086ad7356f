package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/GTDGit/apparel_tracker/internal/utils"
)

// uniqueFields maps fragments of unique index names to the field they guard.
var uniqueFields = []struct {
	fragment string
	field    string
}{
	{"invoice", "invoiceNumber"},
	{"barcode", "barcode"},
	{"sku", "sku"},
	{"username", "username"},
	{"email", "email"},
}

// translate maps driver errors onto the application taxonomy and wraps the rest.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return utils.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return &utils.DuplicateKeyError{Field: duplicateField(err.Error())}
	}
	return errors.Wrap(err, op)
}

// duplicateField reads the index name out of an E11000 message such as
// "E11000 duplicate key error collection: db.sales index: sales_invoice_unique dup key: {...}".
func duplicateField(msg string) string {
	index := msg
	if i := strings.Index(msg, "index: "); i >= 0 {
		index = msg[i+len("index: "):]
		if j := strings.IndexByte(index, ' '); j >= 0 {
			index = index[:j]
		}
	}
	index = strings.ToLower(index)
	for _, f := range uniqueFields {
		if strings.Contains(index, f.fragment) {
			return f.field
		}
	}
	return "unknown"
}

// withTimeout bounds a single store call; the caller's deadline still applies if sooner.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// literal guards a value inside an update pipeline so strings starting with
// "$" are not read as field paths.
func literal(v interface{}) bson.D {
	return bson.D{{Key: "$literal", Value: v}}
}

func pageBounds(page, limit int) (int, int, int64) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, int64((page - 1) * limit)
}
