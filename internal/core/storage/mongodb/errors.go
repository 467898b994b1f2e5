package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// codeDocumentValidationFailure is the server error code for a validator rejection.
const codeDocumentValidationFailure = 121

// isValidationFailure reports whether err is a collection validator rejection.
func isValidationFailure(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeDocumentValidationFailure)
}

// classify wraps failures worth retrying with storage.ErrTransient.
//
// Concurrent upserts on the same key of a uniquely indexed collection can race
// to insert it; the loser gets a duplicate key error and matches the winner's
// document on retry, so that counts too.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrTransient, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("RetryableWriteError") {
		return fmt.Errorf("%s: %w: %v", op, storage.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
