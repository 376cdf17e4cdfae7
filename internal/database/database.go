// Package database contains the logic for establishing
// connections to the MongoDB database.
//
// It owns a lazily created, reusable driver client (the driver
// maintains the connection pool) and integrates the logger/tracer
// with the driver through a command monitor.
//
// It handles:
//   - building client options from config
//   - creating the client at most once per URI: concurrent callers share
//     one dial and never wait past their own deadline
//   - (re)selecting the database handle on every connect
//   - swallowing connection failures: they are logged and the
//     manager simply reports "not connected"
package database

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/deppfellow/users-api/internal/config"
	"github.com/deppfellow/users-api/internal/dberr"
	loggerConfig "github.com/deppfellow/users-api/internal/logger"
	"github.com/deppfellow/users-api/internal/metrics"
	"github.com/deppfellow/users-api/internal/model"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/singleflight"
)

// DefaultConnectTimeout bounds client creation when none is configured.
const DefaultConnectTimeout = 10 * time.Second

// dialFunc creates a ready-to-use client. Production code dials and pings.
type dialFunc func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)

// Options configures a ConnectionManager.
type Options struct {
	URI            string
	DBName         string
	CollectionName string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	Monitor        *event.CommandMonitor
}

// ConnectionManager owns the shared MongoDB client and database handle.
//
// Invariants:
//   - db is non-nil only after a successful connect
//   - client is created at most once per URI and reused across calls
//   - every mutation of the connection state happens under mu
//   - mu is never held while dialing or disconnecting
type ConnectionManager struct {
	mu sync.Mutex

	uri            string
	dbName         string
	collectionName string
	connectTimeout time.Duration
	maxPoolSize    uint64
	monitor        *event.CommandMonitor

	client    *mongo.Client
	clientURI string
	db        *mongo.Database

	dials singleflight.Group
	dial  dialFunc
	log  *zerolog.Logger
}

// New creates a ConnectionManager from the application config.
//
// It does NOT connect: the first store operation (or health check) does.
// In local env every command is logged through the driver monitor; New
// Relic datastore segments are added when the agent is enabled.
func New(cfg *config.Config, logger *zerolog.Logger, loggerService *loggerConfig.LoggerService) *ConnectionManager {
	var monitor *event.CommandMonitor
	if cfg.Primary.Env == "local" || loggerService.GetApplication() != nil {
		monitor = loggerConfig.NewMongoMonitor(logger, cfg.Observability.Logging.SlowQueryThreshold, loggerService)
	}

	return NewConnectionManager(Options{
		URI:            cfg.Database.URI,
		DBName:         cfg.Database.Name,
		CollectionName: cfg.Database.Collection,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		Monitor:        monitor,
	}, logger)
}

// NewConnectionManager creates a ConnectionManager from explicit options.
func NewConnectionManager(opts Options, logger *zerolog.Logger) *ConnectionManager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	return &ConnectionManager{
		uri:            opts.URI,
		dbName:         opts.DBName,
		collectionName: opts.CollectionName,
		connectTimeout: opts.ConnectTimeout,
		maxPoolSize:    opts.MaxPoolSize,
		monitor:        opts.Monitor,
		dial:           dialAndPing,
		log:            logger,
	}
}

// dialAndPing connects a client and verifies the deployment is reachable.
func dialAndPing(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// Connect ensures a client exists for uri and selects dbName.
//
// Empty arguments fall back to the previously configured values; non-empty
// ones become the new configured values. A client is only created when none
// exists for the resolved URI. On failure the error is logged, the database
// handle is left unset and nil is returned: callers must treat nil as
// "not connected".
func (m *ConnectionManager) Connect(ctx context.Context, uri, dbName string) *mongo.Database {
	db, _ := m.connect(ctx, uri, dbName)
	return db
}

// connect is Connect with the failure kept: ErrNotConnected when the dial
// failed, or a Timeout when ctx expired while waiting for the dial.
//
// mu is never held across network I/O. Concurrent callers share a single
// dial per URI and each one stops waiting when its own ctx is done.
func (m *ConnectionManager) connect(ctx context.Context, uri, dbName string) (*mongo.Database, error) {
	m.mu.Lock()
	if uri != "" {
		m.uri = uri
	}
	if dbName != "" {
		m.dbName = dbName
	}

	var stale *mongo.Client
	if m.client != nil && m.clientURI != m.uri {
		m.log.Info().
			Str("old_uri", RedactURI(m.clientURI)).
			Str("new_uri", RedactURI(m.uri)).
			Msg("connection uri changed, replacing mongodb client")
		stale = m.detachLocked()
	}

	if db := m.selectLocked(); db != nil {
		m.mu.Unlock()
		return db, nil
	}
	target := m.uri
	m.mu.Unlock()

	if stale != nil {
		m.disconnect(ctx, stale)
	}

	result := m.dials.DoChan(target, func() (interface{}, error) {
		return nil, m.dialAndInstall(target)
	})

	select {
	case <-ctx.Done():
		return nil, dberr.Classify("connect", m.CollectionName(), ctx.Err(), dberr.ConnectionFailure)
	case res := <-result:
		if res.Err != nil {
			return nil, dberr.ErrNotConnected
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if db := m.selectLocked(); db != nil {
		return db, nil
	}
	return nil, dberr.ErrNotConnected
}

// selectLocked (re)selects the configured database on a client created for
// the configured URI. It returns nil when there is no such client.
func (m *ConnectionManager) selectLocked() *mongo.Database {
	if m.client == nil || m.clientURI != m.uri {
		return nil
	}
	m.db = m.client.Database(m.dbName)
	metrics.SetDatabaseConnected(true)
	return m.db
}

// errStaleDial reports a dial whose URI is no longer the configured one.
var errStaleDial = errors.New("connection uri changed while dialing")

// dialAndInstall creates a client for target and installs it. It runs
// detached from any request, bounded by the connect timeout only.
func (m *ConnectionManager) dialAndInstall(target string) error {
	m.mu.Lock()
	if m.client != nil && m.clientURI == target {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	client, err := m.newClient(target)
	if err != nil {
		m.mu.Lock()
		if m.client == nil {
			m.db = nil
			metrics.SetDatabaseConnected(false)
		}
		m.mu.Unlock()

		kind := dberr.ConnectionFailure
		if dberr.ErrCode(dberr.Classify("connect", m.CollectionName(), err, dberr.ConnectionFailure)) == dberr.Timeout {
			kind = dberr.Timeout
		}

		m.log.Error().
			Err(err).
			Str("error_kind", string(kind)).
			Str("uri", RedactURI(target)).
			Msg("MongoDB connection error")
		return err
	}

	m.mu.Lock()
	if m.uri != target || m.client != nil {
		m.mu.Unlock()
		m.disconnect(context.Background(), client)
		return errStaleDial
	}
	m.client = client
	m.clientURI = target
	m.mu.Unlock()

	m.log.Info().Str("uri", RedactURI(target)).Msg("connected to the database")
	return nil
}

func (m *ConnectionManager) newClient(uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetAppName(config.ServiceName).
		SetConnectTimeout(m.connectTimeout).
		SetServerSelectionTimeout(m.connectTimeout)

	if m.maxPoolSize > 0 {
		opts.SetMaxPoolSize(m.maxPoolSize)
	}
	if m.monitor != nil {
		opts.SetMonitor(m.monitor)
	}

	dialCtx, cancel := context.WithTimeout(context.Background(), m.connectTimeout)
	defer cancel()

	return m.dial(dialCtx, opts)
}

// Connected reports whether a database handle is set.
func (m *ConnectionManager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil
}

// Collection connects (idempotently) and returns the configured collection.
//
// It returns ErrNotConnected when the dial failed and a Timeout when ctx
// expired first.
func (m *ConnectionManager) Collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := m.connect(ctx, "", "")
	if err != nil {
		return nil, err
	}
	return db.Collection(m.CollectionName()), nil
}

// CollectionName returns the configured collection name.
func (m *ConnectionManager) CollectionName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collectionName
}

// Ping connects (idempotently) and pings the primary.
func (m *ConnectionManager) Ping(ctx context.Context) error {
	if _, err := m.connect(ctx, "", ""); err != nil {
		return err
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client == nil {
		return dberr.ErrNotConnected
	}
	return client.Ping(ctx, readpref.Primary())
}

// Metadata returns the diagnostic projection of the connection state.
// The URI password is redacted.
func (m *ConnectionManager) Metadata() model.Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()

	return model.Metadata{
		DBName:         m.dbName,
		CollectionName: m.collectionName,
		URI:            RedactURI(m.uri),
		Connected:      m.db != nil,
	}
}

// Close releases the client. It is a no-op when no client exists.
func (m *ConnectionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	client := m.detachLocked()
	m.mu.Unlock()

	if client == nil {
		return nil
	}

	m.log.Info().Msg("closing database connection")
	return m.disconnect(ctx, client)
}

// detachLocked clears the connection state and returns the client that
// held it, to be disconnected once mu is released.
func (m *ConnectionManager) detachLocked() *mongo.Client {
	client := m.client
	m.client = nil
	m.clientURI = ""
	m.db = nil
	metrics.SetDatabaseConnected(false)
	return client
}

func (m *ConnectionManager) disconnect(ctx context.Context, client *mongo.Client) error {
	if err := client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		m.log.Warn().Err(err).Msg("failed to disconnect mongodb client")
		return err
	}
	return nil
}

// RedactURI hides the password of a connection string.
func RedactURI(uri string) string {
	if u, err := url.Parse(uri); err == nil {
		return u.Redacted()
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	user, _, hasPassword := strings.Cut(rest[:at], ":")
	if !hasPassword {
		return uri
	}
	return scheme + "://" + user + ":xxxxx@" + rest[at+1:]
}
