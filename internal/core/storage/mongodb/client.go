package mongodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/trajstore-lab/trajstore/internal/core/storage"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	defaultConnectTimeout     = 10 * time.Second
	defaultMetadataCollection = "__METADATA__"
)

// Options configures the document store client.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration

	// ConfigurationID and ComputeNodeID are stamped on every typed record write.
	ConfigurationID string
	ComputeNodeID   int

	// MetadataCollection holds one metadata document per transformed collection.
	MetadataCollection string

	// Protected collections are never dropped.
	Protected []string
}

// Client is a connected document store client bound to one database.
type Client struct {
	client    *mongo.Client
	db        *mongo.Database
	opts      Options
	protected map[string]struct{}
}

// Connect opens the connection and pings the primary. Any failure wraps
// storage.ErrConnection; there is no retry.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.MetadataCollection == "" {
		opts.MetadataCollection = defaultMetadataCollection
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("%w: database name is required", storage.ErrConnection)
	}

	client, err := mongo.Connect(options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", storage.ErrConnection, err)
	}

	protected := make(map[string]struct{}, len(opts.Protected)+1)
	for _, name := range opts.Protected {
		protected[name] = struct{}{}
	}
	protected[opts.MetadataCollection] = struct{}{}

	slog.Info("[MongoStore] Connected", "database", opts.Database)
	return &Client{
		client:    client,
		db:        client.Database(opts.Database),
		opts:      opts,
		protected: protected,
	}, nil
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Collection returns a handle on the named collection.
func (c *Client) Collection(name string) *Collection {
	return &Collection{coll: c.db.Collection(name), name: name}
}
