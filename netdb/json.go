package netdb

import (
	"bytes"
	"encoding/json"

	"github.com/go-errors/errors"
	"go.etcd.io/bbolt"
)

func setJSON(tx *bbolt.Tx, bucketName []byte, bucketKey []byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	bucket, err := tx.CreateBucketIfNotExists(bucketName)
	if err != nil {
		return err
	}

	return bucket.Put(bucketKey, payload)
}

// getJSON reports whether the key held a value.
func getJSON(tx *bbolt.Tx, bucketName []byte, bucketKey []byte, v interface{}) (bool, error) {
	bucket := tx.Bucket(bucketName)
	if bucket == nil {
		return false, nil
	}

	payload := bucket.Get(bucketKey)
	if payload == nil || bytes.Equal(payload, []byte("null")) {
		return false, nil
	}

	err := unmarshal(payload, v)
	if err != nil {
		return false, err
	}

	return true, nil
}

func unmarshal(payload []byte, v interface{}) error {
	err := json.Unmarshal(payload, v)
	if err != nil {
		return errors.Errorf("could not unmarshal data: %v", err)
	}

	return nil
}
