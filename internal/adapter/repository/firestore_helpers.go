package repository

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	notificationsCollection = "notifications"
	preferencesCollection   = "userPreferences"
	followsCollection       = "follows"
	usersCollection         = "users"
	recipesCollection       = "recipes"

	// maxBatchWrites is the Firestore write-batch ceiling.
	maxBatchWrites = 500
)

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || status.Code(err) == codes.Canceled
}

// countQuery runs a server-side COUNT aggregation.
func countQuery(ctx context.Context, q firestore.Query) (int, error) {
	results, err := q.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}
	raw, ok := results["total"]
	if !ok {
		return 0, fmt.Errorf("count aggregation returned no result")
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("unexpected count result type %T", raw)
	}
	return int(value.GetIntegerValue()), nil
}

// commitInChunks applies write to every ref, committing a batch per maxBatchWrites refs.
func commitInChunks(ctx context.Context, client *firestore.Client, refs []*firestore.DocumentRef, write func(b *firestore.WriteBatch, ref *firestore.DocumentRef)) error {
	for start := 0; start < len(refs); start += maxBatchWrites {
		end := start + maxBatchWrites
		if end > len(refs) {
			end = len(refs)
		}
		batch := client.Batch()
		for _, ref := range refs[start:end] {
			write(batch, ref)
		}
		if _, err := batch.Commit(ctx); err != nil {
			return err
		}
	}
	return nil
}
