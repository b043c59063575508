package netdb

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

const (
	dbFilePermission = 0600
	dbName           = "nmwatchd.db"
)

var (
	connectionsBucket = []byte("connections")

	ErrNotFound = errors.New("connection not found")
)

// Connection is a wireless network that was joined through the daemon.
// Secrets stay with NetworkManager and are never stored here.
type Connection struct {
	Name          string    `json:"name"`
	SecurityType  string    `json:"security_type"`
	LastConnected time.Time `json:"last_connected"`
	ConnectCount  int       `json:"connect_count"`
}

// DB persistently stores the connections made through the daemon.
type DB struct {
	*bbolt.DB
	dbPath string
}

func Open(dbPath string) (*DB, error) {
	err := os.MkdirAll(dbPath, 0700)
	if err != nil {
		return nil, errors.Errorf("could not create data dir %v: %v", dbPath, err)
	}

	path := filepath.Join(dbPath, dbName)

	bdb, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Errorf("could not open %v: %v", path, err)
	}

	db := &DB{
		DB:     bdb,
		dbPath: dbPath,
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(connectionsBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, errors.Errorf("could not create buckets: %v", err)
	}

	return db, nil
}

// SaveConnection records a successful connection, keeping the count of
// previous ones.
func (db *DB) SaveConnection(name string, securityType string, at time.Time) (*Connection, error) {
	connection := &Connection{}

	err := db.Update(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx, connectionsBucket, []byte(name), connection)
		if err != nil {
			return err
		}

		if !found {
			connection = &Connection{Name: name}
		}

		connection.SecurityType = securityType
		connection.LastConnected = at
		connection.ConnectCount++

		return setJSON(tx, connectionsBucket, []byte(name), connection)
	})
	if err != nil {
		return nil, errors.Errorf("could not save connection %v: %v", name, err)
	}

	return connection, nil
}

func (db *DB) GetConnection(name string) (*Connection, error) {
	connection := &Connection{}

	var found bool

	err := db.View(func(tx *bbolt.Tx) error {
		var err error
		found, err = getJSON(tx, connectionsBucket, []byte(name), connection)
		return err
	})
	if err != nil {
		return nil, errors.Errorf("could not get connection %v: %v", name, err)
	}

	if !found {
		return nil, ErrNotFound
	}

	return connection, nil
}

// ListConnections returns all connections, most recently used first.
func (db *DB) ListConnections() ([]*Connection, error) {
	connections := []*Connection{}

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(connectionsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.ForEach(func(k, v []byte) error {
			connection := &Connection{}

			err := unmarshal(v, connection)
			if err != nil {
				return err
			}

			connections = append(connections, connection)

			return nil
		})
	})
	if err != nil {
		return nil, errors.Errorf("could not list connections: %v", err)
	}

	sort.Slice(connections, func(i, j int) bool {
		return connections[i].LastConnected.After(connections[j].LastConnected)
	})

	return connections, nil
}

func (db *DB) DeleteConnection(name string) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(connectionsBucket)
		if bucket == nil {
			return nil
		}

		return bucket.Delete([]byte(name))
	})
	if err != nil {
		return errors.Errorf("could not delete connection %v: %v", name, err)
	}

	return nil
}

// HasWifiProfile reports whether any connection was ever made.
func (db *DB) HasWifiProfile(ctx context.Context) (bool, error) {
	var found bool

	err := db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(connectionsBucket)
		if bucket == nil {
			return nil
		}

		k, _ := bucket.Cursor().First()
		found = k != nil

		return nil
	})
	if err != nil {
		return false, errors.Errorf("could not look for connections: %v", err)
	}

	return found, nil
}
