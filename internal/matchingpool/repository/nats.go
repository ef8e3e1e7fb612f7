package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	pooldomain "github.com/smallbiznis/sadaqah/internal/matchingpool/domain"
)

// NATSStore keeps the ledger in a JetStream key-value bucket. KV revisions
// double as ledger versions.
type NATSStore struct {
	kv  jetstream.KeyValue
	key string
}

// ConnectNATS dials the server and opens (or creates) the ledger bucket.
func ConnectNATS(ctx context.Context, url, bucket string) (*nats.Conn, jetstream.KeyValue, error) {
	nc, err := nats.Connect(url, nats.Name("sadaqah-ledger"))
	if err != nil {
		return nil, nil, err
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "sadaqah matching pool ledger",
		History:     5,
	})
	if err != nil {
		nc.Close()
		return nil, nil, err
	}
	return nc, kv, nil
}

func NewNATSStore(kv jetstream.KeyValue, key string) (*NATSStore, error) {
	if kv == nil {
		return nil, errors.New("nats bucket not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("ledger key is empty")
	}
	return &NATSStore{kv: kv, key: key}, nil
}

func (s *NATSStore) Load(ctx context.Context) ([]byte, error) {
	data, _, err := s.LoadVersion(ctx)
	return data, err
}

func (s *NATSStore) LoadVersion(ctx context.Context) ([]byte, uint64, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return entry.Value(), entry.Revision(), nil
}

func (s *NATSStore) Save(ctx context.Context, data []byte) error {
	_, err := s.kv.Put(ctx, s.key, data)
	return err
}

func (s *NATSStore) CompareAndSave(ctx context.Context, data []byte, expected uint64) (uint64, error) {
	var (
		revision uint64
		err      error
	)
	if expected == 0 {
		revision, err = s.kv.Create(ctx, s.key, data)
	} else {
		revision, err = s.kv.Update(ctx, s.key, data, expected)
	}
	if isRevisionConflict(err) {
		return 0, pooldomain.ErrVersionConflict
	}
	if err != nil {
		return 0, err
	}
	return revision, nil
}

func isRevisionConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}
	return false
}
